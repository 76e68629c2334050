package stores

import (
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"

	pe "wuyrush.io/serendipity/errors"
)

// FileKV implements KV backed by local file system, one file per key under Dir.
type FileKV struct {
	Dir string
}

// Ref returns the path of the file holding key. It is deterministic based on key.
func (fs *FileKV) Ref(key string) string {
	return filepath.Join(fs.Dir, url.PathEscape(key)+".json")
}

func (fs *FileKV) Get(key string) ([]byte, *pe.Err) {
	b, err := ioutil.ReadFile(fs.Ref(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pe.NewNotFound("key not found").WithCause(err)
		}
		return nil, pe.NewServiceFailure("error reading value file").WithCause(err)
	}
	return b, nil
}

// Set writes to a temp file first and renames it over the old one so that readers never observe a
// partial write.
func (fs *FileKV) Set(key string, val []byte) *pe.Err {
	const errMsg = "error writing value file"
	if err := os.MkdirAll(fs.Dir, 0o755); err != nil {
		return pe.NewServiceFailure(errMsg).WithCause(err)
	}
	f, err := ioutil.TempFile(fs.Dir, ".tmp-*")
	if err != nil {
		return pe.NewServiceFailure(errMsg).WithCause(err)
	}
	tmp := f.Name()
	if _, err := f.Write(val); err != nil {
		f.Close()
		os.Remove(tmp)
		return pe.NewServiceFailure(errMsg).WithCause(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return pe.NewServiceFailure(errMsg).WithCause(err)
	}
	if err := os.Rename(tmp, fs.Ref(key)); err != nil {
		os.Remove(tmp)
		return pe.NewServiceFailure(errMsg).WithCause(err)
	}
	return nil
}

func (fs *FileKV) Close() *pe.Err {
	return nil
}
