// Copyright (c) 2022 Stable Cloud Computing, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command sqld-shell executes a stream of SQL statements against an
// sqlite database and prints any result rows, one result set per query
// in the stream. SQL comes from -e flags or stdin.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	sqld "github.com/stablecc/scclib-sqlite"
)

type options struct {
	URI  string   `short:"u" long:"uri" env:"SQLD_URI" default:"file:mem?mode=memory&cache=shared" description:"sqlite connection URI"`
	Exec []string `short:"e" long:"exec" description:"SQL to execute; reads stdin if omitted"`
	Dbg  bool     `long:"dbg" description:"debug mode"`
}

var revision = "latest"

func main() {
	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		os.Exit(2)
	}
	setupLog(opts.Dbg)
	lgr.Printf("[DEBUG] sqld-shell %s, uri=%s", revision, opts.URI)

	if err := run(opts, os.Stdin, os.Stdout); err != nil {
		lgr.Printf("[ERROR] %v", err)
		os.Exit(1)
	}
}

func run(opts options, stdin io.Reader, stdout io.Writer) error {
	conn, err := sqld.Open(opts.URI)
	if err != nil {
		return fmt.Errorf("can't open %q: %w", opts.URI, err)
	}
	defer conn.Close()

	req := sqld.NewReq(conn)
	defer req.Close()

	if len(opts.Exec) > 0 {
		req.Append(opts.Exec...)
	} else {
		if _, err := io.Copy(req, stdin); err != nil {
			return fmt.Errorf("can't read sql: %w", err)
		}
	}
	return dump(req, stdout)
}

// dump executes the cursor's buffer, printing every result set it
// produces along the way.
func dump(req *sqld.Req, w io.Writer) error {
	head := color.New(color.FgCyan, color.Bold)
	for {
		cols, err := req.ExecSelect()
		if err != nil {
			return err
		}
		if cols == 0 {
			return nil
		}

		names := make([]string, cols)
		for i := range names {
			if names[i], err = req.ColName(i); err != nil {
				return err
			}
		}
		head.Fprintln(w, strings.Join(names, "\t"))

		for cols != 0 {
			vals := make([]string, cols)
			for i := range vals {
				if vals[i], err = req.ColText(i); err != nil {
					return err
				}
			}
			fmt.Fprintln(w, strings.Join(vals, "\t"))
			if cols, err = req.NextRow(); err != nil {
				return err
			}
		}
	}
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Out(os.Stderr), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = append(logOpts, lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec)
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
