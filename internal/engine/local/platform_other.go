//go:build !linux

package local

import "os"

func mmapFlags(uint32) int { return 0 }

func checkWritable(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	return f.Close()
}
