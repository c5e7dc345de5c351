package model

import (
	"encoding/gob"
	"io"
	"os"

	"github.com/sdss/AnniesLasso/pkg/errors"
)

// FormatVersion is written ahead of every encoded model.
const FormatVersion = 1

const formatMagic = "annieslasso-model"

type header struct {
	Magic   string
	Version int
}

// SaveModel はモデルをファイルに保存する
//
// 使用例:
//
//	err := model.SaveModel(snapshot, "cannon.gob")
func SaveModel(m interface{}, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", filename)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", filename)
		}
	}()
	return SaveModelToWriter(m, file)
}

// LoadModel はファイルからモデルを読み込む（m はポインタ）
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", filename)
	}
	defer file.Close()
	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はヘッダーとモデルをio.Writerに書き込む
func SaveModelToWriter(m interface{}, w io.Writer) error {
	encoder := gob.NewEncoder(w)
	if err := encoder.Encode(header{Magic: formatMagic, Version: FormatVersion}); err != nil {
		return errors.Wrap(err, "failed to encode header")
	}
	if err := encoder.Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	decoder := gob.NewDecoder(r)
	var h header
	if err := decoder.Decode(&h); err != nil {
		return errors.Wrap(err, "failed to decode header")
	}
	if h.Magic != formatMagic {
		return errors.NewValueError("LoadModel", "not an annieslasso model stream")
	}
	if h.Version != FormatVersion {
		return errors.NewConfigurationError("version", "unsupported model format version", h.Version)
	}
	if err := decoder.Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
