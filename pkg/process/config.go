// Copyright (C) 2019 Storj Labs, Inc.
// See LICENSE for copying information.

package process

import (
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	yaml "gopkg.in/yaml.v2"
)

// SaveConfig writes the current viper settings, with overrides applied, to
// outfile as YAML.
func SaveConfig(outfile string, overrides map[string]interface{}) error {
	if err := viper.MergeConfigMap(overrides); err != nil {
		return Error.Wrap(err)
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return Error.Wrap(err)
	}
	if err := os.MkdirAll(filepath.Dir(outfile), 0700); err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(atomicWrite(outfile, 0600, data))
}

// atomicWrite is a helper to atomically write the data to the outfile.
func atomicWrite(outfile string, mode os.FileMode, data []byte) (err error) {
	fh, err := ioutil.TempFile(filepath.Dir(outfile), filepath.Base(outfile))
	if err != nil {
		return errs.Wrap(err)
	}
	defer func() {
		if err != nil {
			err = errs.Combine(err, fh.Close())
			err = errs.Combine(err, os.Remove(fh.Name()))
		}
	}()
	if err := fh.Chmod(mode); err != nil {
		return errs.Wrap(err)
	}
	if _, err := fh.Write(data); err != nil {
		return errs.Wrap(err)
	}
	if err := fh.Sync(); err != nil {
		return errs.Wrap(err)
	}
	if err := fh.Close(); err != nil {
		return errs.Wrap(err)
	}
	if err := os.Rename(fh.Name(), outfile); err != nil {
		return errs.Wrap(err)
	}
	return nil
}
