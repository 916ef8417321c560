package archive

import (
	"os/exec"
	"runtime"
)

// Capabilities describes what the host offers for unpacking archives. It is
// detected once at startup and handed to the Downloader.
type Capabilities struct {
	// Windows selects the native zip engine as the first choice.
	Windows bool
	// NativeZip enables the in-process zip engine.
	NativeZip bool
	// UnzipCommand is the path of the unzip binary, empty when unavailable.
	UnzipCommand string
}

// DetectCapabilities inspects the running host.
func DetectCapabilities() Capabilities {
	caps := Capabilities{
		Windows:   runtime.GOOS == "windows",
		NativeZip: true,
	}
	if path, err := exec.LookPath("unzip"); err == nil {
		caps.UnzipCommand = path
	}
	return caps
}

// preferCommand reports whether the unzip binary should be tried before the
// native engine.
func (c Capabilities) preferCommand() bool {
	return !c.Windows && c.UnzipCommand != ""
}
