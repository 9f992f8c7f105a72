package model

import (
	"encoding/gob"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/YuminosukeSato/modeltrainer/pkg/errors"
)

// Envelope is the value written to a model file.
type Envelope struct {
	Kind       string
	SavedAt    time.Time
	Classifier Classifier
}

var (
	registryMu sync.RWMutex
	registry   = map[string]struct{}{}
)

// Register makes a classifier type loadable. Estimator packages call it from
// init with a zero value; the concrete type must implement
// encoding.BinaryMarshaler and encoding.BinaryUnmarshaler.
func Register(kind string, proto Classifier) {
	registryMu.Lock()
	defer registryMu.Unlock()
	gob.RegisterName(kind, proto)
	registry[kind] = struct{}{}
}

// RegisteredKinds returns the registered kinds in sorted order.
func RegisteredKinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// SaveModel はモデルをファイルに保存する。既存のファイルは上書きされる
//
//	clf := neighbors.NewKNeighborsClassifier(neighbors.WithNNeighbors(5))
//	// ... 学習 ...
//	err := model.SaveModel(clf, "knn.gob")
func SaveModel(clf Classifier, filename string) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return errors.NewPersistenceError("save", filename, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.NewPersistenceError("save", filename, cerr)
		}
	}()

	if err := SaveModelToWriter(clf, file); err != nil {
		return errors.NewPersistenceError("save", filename, err)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
func LoadModel(filename string) (Classifier, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, errors.NewPersistenceError("load", filename, err)
	}
	defer file.Close()

	clf, err := LoadModelFromReader(file)
	if err != nil {
		return nil, errors.NewPersistenceError("load", filename, err)
	}
	return clf, nil
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(clf Classifier, w io.Writer) error {
	if clf == nil {
		return errors.NewValueError("SaveModelToWriter", "nil classifier")
	}
	env := Envelope{Kind: clf.Name(), SavedAt: time.Now().UTC(), Classifier: clf}
	if err := gob.NewEncoder(w).Encode(&env); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(r io.Reader) (Classifier, error) {
	var env Envelope
	if err := gob.NewDecoder(r).Decode(&env); err != nil {
		return nil, errors.Wrap(err, "failed to decode model")
	}
	if env.Classifier == nil {
		return nil, errors.Wrapf(errors.ErrUnknownModel, "kind %q", env.Kind)
	}
	return env.Classifier, nil
}
