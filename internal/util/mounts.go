package util

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MountInfo describes the filesystem holding a path
type MountInfo struct {
	MountPath string // Longest mount point containing the path
	FSType    string // Filesystem type as listed in the mount table
	IsNetwork bool   // NFS, SMB/CIFS, sshfs and similar
}

var networkFSTypes = []string{"nfs", "cifs", "smb", "ncpfs", "fuse.sshfs", "fuse.rclone", "9p"}

// mountTable is the Linux mount table; elsewhere it does not exist and
// every path is reported as local.
var mountTable = "/proc/mounts"

// DetectMount reports which mount holds path. SQLite's file locking is not
// reliable on network filesystems, so the doctor command warns about it.
func DetectMount(path string) (*MountInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	f, err := os.Open(mountTable)
	if err != nil {
		return &MountInfo{MountPath: "/"}, nil
	}
	defer f.Close()

	mounts, err := parseMounts(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read mount table: %w", err)
	}
	return matchMount(abs, mounts), nil
}

// parseMounts reads "device mountpoint fstype options dump pass" lines
func parseMounts(r io.Reader) (map[string]string, error) {
	mounts := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 {
			continue
		}
		mounts[fields[1]] = fields[2]
	}
	return mounts, scanner.Err()
}

func matchMount(path string, mounts map[string]string) *MountInfo {
	info := &MountInfo{MountPath: "/"}
	best := ""
	for mountPoint, fsType := range mounts {
		if !withinMount(path, mountPoint) || len(mountPoint) <= len(best) {
			continue
		}
		best = mountPoint
		info.MountPath = mountPoint
		info.FSType = fsType
	}

	lower := strings.ToLower(info.FSType)
	for _, nt := range networkFSTypes {
		if strings.HasPrefix(lower, nt) {
			info.IsNetwork = true
			break
		}
	}
	return info
}

func withinMount(path, mountPoint string) bool {
	if mountPoint == "/" {
		return true
	}
	return path == mountPoint || strings.HasPrefix(path, strings.TrimSuffix(mountPoint, "/")+"/")
}
