package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

//FrameName returns the file name of the n-th frame (1-based), e.g. FrameName(7) == "frame_00007.png"
func FrameName(n int) string {
	return fmt.Sprintf(FramePattern, n)
}

//ParseFrameNumber returns the sequence number encoded in a frame file name.
//Only names produced by FrameName are accepted
func ParseFrameNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, FramePrefix) || !strings.HasSuffix(name, "."+FrameExt) {
		return 0, false
	}

	digits := strings.TrimSuffix(strings.TrimPrefix(name, FramePrefix), "."+FrameExt)
	if len(digits) != FrameDigits {
		return 0, false
	}

	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}

	return n, true
}

//ListFrames returns the frame file names in given directory ordered by sequence number.
//Other files are ignored
func ListFrames(dir string) ([]string, error) {
	names, err := ListDir(dir)
	if err != nil {
		return nil, err
	}

	frames := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := ParseFrameNumber(name); ok {
			frames = append(frames, name)
		}
	}

	//zero padding makes lexical order equal to numeric order
	sort.Strings(frames)
	return frames, nil
}

//ContiguousFrames counts frames frame_00001, frame_00002, ... in given directory up to the first gap
func ContiguousFrames(dir string) int {
	count := 0
	for n := 1; n <= MaxFrameNumber; n++ {
		if _, err := os.Stat(filepath.Join(dir, FrameName(n))); err != nil {
			break
		}
		count++
	}

	return count
}
