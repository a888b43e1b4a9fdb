//go:build !unix

package zsup

import "os"

func defaultSignals() []os.Signal {
	return []os.Signal{os.Interrupt}
}
