package nailgun

import (
	"os"

	"github.com/mihaip/nailgun/protocol"
)

// sendRequest emits the setup phase of a session: working directory,
// environment entries, arguments in caller order, then the command
// name. The command chunk tells the server to begin execution, so
// nothing here may be reordered and all of it precedes any stdin or
// heartbeat traffic.
func (c *Conn) sendRequest(cmd Command) error {
	dir := cmd.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		dir = wd
	}
	if err := c.writeChunk(protocol.ChunkWorkingDir, []byte(dir)); err != nil {
		return err
	}

	env := cmd.Env
	if env == nil {
		env = os.Environ()
	}
	for _, entry := range env {
		if err := c.writeChunk(protocol.ChunkEnvironment, []byte(entry)); err != nil {
			return err
		}
	}

	// Arguments are positional; caller order is significant.
	for _, arg := range cmd.Args {
		if err := c.writeChunk(protocol.ChunkArgument, []byte(arg)); err != nil {
			return err
		}
	}

	return c.writeChunk(protocol.ChunkCommand, []byte(cmd.Name))
}
