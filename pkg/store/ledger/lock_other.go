//go:build !unix

package ledger

import "os"

// Cross-process locking is unix-only; the in-process mutex still applies.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
