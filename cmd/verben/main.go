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

// Command verben is the pluggable TCP application server daemon.
//
//	verben [--config FILE] [start|stop]
//
// A spawned child re-executes this binary with its role in the
// environment and never reaches the CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	libdmn "github.com/nabbar/verben/daemon"
	libmst "github.com/nabbar/verben/master"
	libver "github.com/nabbar/verben/version"

	_ "github.com/nabbar/verben/plugins/echo"
	_ "github.com/nabbar/verben/plugins/httpd"
)

func main() {
	if role := libmst.ChildRole(); role != "" {
		os.Exit(libmst.RunChild(role))
	}

	if e := newRoot().Execute(); e != nil {
		os.Exit(1)
	}
}

func newRoot() *cobra.Command {
	var (
		cfgPath  string
		showVers bool
		detach   bool
	)

	root := &cobra.Command{
		Use:           "verben [start|stop]",
		Short:         "pluggable TCP application server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVers {
				fmt.Println(libver.Default().Info())
				return nil
			}
			return runStart(cfgPath, detach)
		},
	}

	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./verben.conf", "configuration file")
	root.Flags().BoolVarP(&showVers, "version", "v", false, "print version and exit")
	root.PersistentFlags().BoolVarP(&detach, "daemon", "d", false, "detach from the terminal")

	root.AddCommand(&cobra.Command{
		Use:   "start",
		Short: "start the daemon (default action)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cfgPath, detach)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "stop",
		Short: "signal the running daemon to quit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if e := libmst.Stop(cfgPath); e != nil {
				fmt.Fprintln(os.Stderr, e.Error())
				return e
			}
			return nil
		},
	})

	return root
}

func runStart(cfgPath string, detach bool) error {
	if detach {
		if e := libdmn.Detach(); e != nil {
			fmt.Fprintln(os.Stderr, e.Error())
			return e
		}
	}

	if e := libmst.New(cfgPath).Run(); e != nil {
		fmt.Fprintln(os.Stderr, e.Error())
		return e
	}

	return nil
}
