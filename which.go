package sh

import "os/exec"

// Which resolves name on PATH, exactly like the shell's own command
// lookup. It is the one piece of the "command-discovery facade" the
// design treats as an external collaborator (see spec §1): the engine
// only ever needs an absolute path, so this function, and New, are the
// whole of that boundary.
func Which(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", &ErrCommandNotFound{Name: name, Err: err}
	}
	return path, nil
}
