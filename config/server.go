/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package config

import (
	"reflect"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"

	liberr "github.com/nabbar/verben/errors"
)

// Server is the typed core configuration bound from the flat key set.
type Server struct {
	Bind          string `mapstructure:"server"         validate:"required"`
	Port          int    `mapstructure:"port"           validate:"min=1,max=65535"`
	WorkerNum     int    `mapstructure:"worker_num"     validate:"min=1,max=1024"`
	ShmqRecv      int    `mapstructure:"shmq_recv"      validate:"min=65536"`
	ShmqSend      int    `mapstructure:"shmq_send"      validate:"min=65536"`
	ClientLimit   int    `mapstructure:"client_limit"   validate:"min=0"`
	ClientTimeout int    `mapstructure:"client_timeout" validate:"min=1"`
	SoFile        string `mapstructure:"so_file"        validate:"required"`
	PidFile       string `mapstructure:"pid_file"       validate:"required"`
	LockMode      string `mapstructure:"lock_mode"      validate:"omitempty,oneof=spin sysv fcntl"`
	LogDir        string `mapstructure:"log_dir"`
	LogName       string `mapstructure:"log_name"`
	LogLevel      string `mapstructure:"log_level"`
	LogSize       int64  `mapstructure:"log_size"`
	LogNum        int    `mapstructure:"log_num"`
	LogMulti      bool   `mapstructure:"log_multi"`
}

// DefaultServer returns the documented defaults for every core key.
func DefaultServer() Server {
	return Server{
		Bind:          "0.0.0.0",
		Port:          8773,
		WorkerNum:     4,
		ShmqRecv:      1 << 20,
		ShmqSend:      1 << 20,
		ClientLimit:   0,
		ClientTimeout: 60,
		PidFile:       "/tmp/verben.pid",
		LockMode:      "spin",
		LogName:       "verben.log",
		LogLevel:      "debug",
		LogSize:       64 << 20,
		LogNum:        10,
	}
}

// BindServer overlays the parsed tree onto the defaults and validates the
// result.
func BindServer(cfg Config) (*Server, liberr.Error) {
	srv := DefaultServer()

	flat := make(map[string]interface{})
	for _, k := range cfg.Keys() {
		if v := cfg.GetString(k, ""); v != "" {
			flat[k] = v
		}
	}

	dec, e := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       boolWordHook,
		WeaklyTypedInput: true,
		Result:           &srv,
	})
	if e != nil {
		return nil, ErrorBindServer.Error(e)
	}

	if e = dec.Decode(flat); e != nil {
		return nil, ErrorBindServer.Error(e)
	}

	if e = validator.New().Struct(&srv); e != nil {
		return nil, ErrorValidateServer.Error(e)
	}

	return &srv, nil
}

// boolWordHook teaches mapstructure the config grammar's boolean words
// (on/off, yes/no, enable[d]/disable[d], …).
func boolWordHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Bool {
		return data, nil
	}

	if b, ok := ParseBool(data.(string)); ok {
		return b, nil
	}

	return data, nil
}
