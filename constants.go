package nwa

import (
	"time"

	"github.com/pior/nwa/protocol"
)

// Client defaults
const (
	// DefaultPort is the port emulators listen on (0xBEEF)
	DefaultPort = protocol.DefaultPort

	// DefaultHost is the host used by the CLI when none is given
	DefaultHost = protocol.DefaultHost

	// DefaultReadBufferSize is the size of a single socket read
	DefaultReadBufferSize = 2048

	// DefaultConnectTimeout bounds a single connection attempt
	DefaultConnectTimeout = 5 * time.Second

	// DefaultWriteTimeout bounds writing a command line
	DefaultWriteTimeout = 5 * time.Second

	// DefaultReconnectInterval is the fixed delay between reconnect attempts
	DefaultReconnectInterval = 2 * time.Second
)

// Commands every emulator implements
const (
	CmdEmulatorInfo   = "EMULATOR_INFO"
	CmdEmulatorStatus = "EMULATION_STATUS"
	CmdGameInfo       = "GAME_INFO"
	CmdCoresList      = "CORES_LIST"
	CmdCoreInfo       = "CORE_INFO"
	CmdCoreCurrent    = "CORE_CURRENT_INFO"
	CmdCoreMemories   = "CORE_MEMORIES"
	CmdCoreRead       = "CORE_READ"
	CmdMyName         = "MY_NAME_IS"
)
