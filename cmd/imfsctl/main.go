// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command imfsctl is an offline debugging tool for the preload/dump
// path: it drives imfs.FS the same way imfsd does at startup, but
// against a throwaway in-process filesystem rather than a live grate,
// so an operator can validate a preload tree (printed with each entry's
// inode number and size) or read back one preloaded file before wiring
// it into a real imfsd invocation. It does not report node-pool or fd
// table occupancy.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lind-project/lind-wasm-sub000/imfs"
)

const inspectCage imfs.CageID = 1

var rootCmd = &cobra.Command{
	Use:   "imfsctl",
	Short: "Offline inspection tool for IMFS preload trees.",
}

var preloadCmd = &cobra.Command{
	Use:   "preload <host-dir> [dest-path]",
	Short: "Preload host-dir into a throwaway IMFS and print the resulting tree.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runPreload,
}

var catCmd = &cobra.Command{
	Use:   "cat <host-dir> <path>",
	Short: "Preload host-dir, then read back one file by its IMFS path.",
	Args:  cobra.ExactArgs(2),
	RunE:  runCat,
}

func init() {
	rootCmd.AddCommand(preloadCmd, catCmd)
}

func runPreload(cmd *cobra.Command, args []string) error {
	destPath := "/"
	if len(args) == 2 {
		destPath = args[1]
	}

	fs := imfs.New(imfs.Config{})
	if err := fs.PreloadDir(inspectCage, args[0], destPath); err != nil {
		return fmt.Errorf("preload %s: %w", args[0], err)
	}

	return printTree(fs, destPath, 0)
}

func runCat(cmd *cobra.Command, args []string) error {
	hostDir, path := args[0], args[1]

	fs := imfs.New(imfs.Config{})
	if err := fs.PreloadDir(inspectCage, hostDir, "/"); err != nil {
		return fmt.Errorf("preload %s: %w", hostDir, err)
	}

	fd, err := fs.Open(inspectCage, path, imfs.ORdOnly, 0)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer fs.Close(inspectCage, fd)

	buf := make([]byte, imfs.ChunkSize)
	for {
		n, err := fs.Read(inspectCage, fd, buf)
		if n > 0 {
			os.Stdout.Write(buf[:n])
		}
		if n == 0 || err != nil {
			break
		}
	}
	return nil
}

// printTree lists dirPath's entries, recursing into subdirectories.
// Grounded on imfsfuse's own Children-based directory walk, reused here
// against Stat/OpenDir+ReadDir instead of a FUSE ReadDirOp.
func printTree(fs *imfs.FS, dirPath string, depth int) error {
	ds, err := fs.OpenDir(inspectCage, dirPath)
	if err != nil {
		return fmt.Errorf("opendir %s: %w", dirPath, err)
	}
	defer fs.CloseDir(inspectCage, ds)

	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}

	for {
		ent, err := ds.ReadDir()
		if err != nil {
			return err
		}
		if ent == nil {
			break
		}
		if ent.Name == "." || ent.Name == ".." {
			continue
		}

		childPath := dirPath
		if childPath != "/" {
			childPath += "/"
		}
		childPath += ent.Name

		st, err := fs.Stat(inspectCage, childPath)
		if err != nil {
			return fmt.Errorf("stat %s: %w", childPath, err)
		}
		fmt.Printf("%s%s  (ino=%d size=%d)\n", indent, ent.Name, st.Ino, st.Size)

		if ent.Kind == imfs.KindDirectory {
			if err := printTree(fs, childPath, depth+1); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
