// Copyright 2019 the Go-FUSE Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package vfs

import (
	"log"
	"sync"

	"github.com/christianb93/ctos-core/ctoslog"
)

var (
	defaultLoggerOnce sync.Once
	defaultLogger     *log.Logger
)

func ctoslogDefault() *log.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = ctoslog.New("vfs")
	})
	return defaultLogger
}
