package core

import (
	"errors"
	"sync"
)

// CommandHandler decodes its own arguments from data and runs the command.
type CommandHandler func(data *[]byte) error

// Command flags
const (
	// HFInShutdown marks commands the firmware still accepts after a
	// shutdown (identify, get_config, config_reset ...).
	HFInShutdown = 1 << 0
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is one entry of the message dictionary. Responses (MCU to host)
// are registered with a nil Handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // e.g. "oid=%c cmds=%*s"
	Flags   uint8
	Handler CommandHandler
}

// CommandRegistry assigns ids to commands and responses in registration
// order and dispatches decoded frames to handlers.
type CommandRegistry struct {
	mu         sync.RWMutex
	commands   map[uint16]*Command
	nameToID   map[string]uint16
	nextID     uint16
	dictionary string
}

var globalRegistry = NewCommandRegistry()

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*Command),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand adds a command to the global registry (DECL_COMMAND).
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.RegisterFlags(name, format, 0, handler)
}

// RegisterCommandFlags is RegisterCommand with HF_* flags.
func RegisterCommandFlags(name string, format string, flags uint8, handler CommandHandler) uint16 {
	return globalRegistry.RegisterFlags(name, format, flags, handler)
}

// RegisterResponse adds an MCU to host message to the global registry.
func RegisterResponse(name string, format string) uint16 {
	return globalRegistry.RegisterFlags(name, format, 0, nil)
}

func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	return r.RegisterFlags(name, format, 0, handler)
}

// RegisterFlags adds a command. Registering a name twice returns the
// existing id.
func (r *CommandRegistry) RegisterFlags(name string, format string, flags uint8, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}
	id := r.nextID
	r.nextID++
	r.commands[id] = &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Flags:   flags,
		Handler: handler,
	}
	r.nameToID[name] = id
	r.rebuildDictionary()
	return id
}

func (r *CommandRegistry) GetCommand(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

func (r *CommandRegistry) GetCommandByName(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler registered for cmdID.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		return ErrUnknownCommand
	}
	return cmd.Handler(data)
}

// GetDictionary returns the plain text command list, one per line.
func (r *CommandRegistry) GetDictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dictionary
}

// GetCommandsAndResponses splits the registry into the "commands" and
// "responses" maps of the JSON dictionary, keyed by "name format".
func (r *CommandRegistry) GetCommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)
	for i := uint16(0); i < r.nextID; i++ {
		cmd, ok := r.commands[i]
		if !ok {
			continue
		}
		if cmd.Handler != nil {
			commands[cmd.message()] = int(cmd.ID)
		} else {
			responses[cmd.message()] = int(cmd.ID)
		}
	}
	return commands, responses
}

func (c *Command) message() string {
	if c.Format == "" {
		return c.Name
	}
	return c.Name + " " + c.Format
}

// rebuildDictionary must be called with the lock held.
func (r *CommandRegistry) rebuildDictionary() {
	dict := ""
	for i := uint16(0); i < r.nextID; i++ {
		if cmd, ok := r.commands[i]; ok {
			dict += cmd.message() + "\n"
		}
	}
	r.dictionary = dict
}

// DispatchCommand routes a command from the transport through the global
// registry. While shut down only HFInShutdown commands run; the rest are
// answered with is_shutdown. A handler error is fatal and shuts the
// firmware down.
func DispatchCommand(cmdID uint16, data *[]byte) error {
	cmd, ok := globalRegistry.GetCommand(cmdID)
	if !ok || cmd.Handler == nil {
		TryShutdown(ErrUnknownCommand)
		return ErrUnknownCommand
	}
	if IsShutdown() && cmd.Flags&HFInShutdown == 0 {
		// Arguments are left undecoded; the transport drops the rest of
		// the frame once we stop consuming it.
		*data = (*data)[len(*data):]
		sendIsShutdown()
		return nil
	}
	if err := cmd.Handler(data); err != nil {
		TryShutdown(err)
		return err
	}
	return nil
}

func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}

func GetCommandCount() int {
	return globalRegistry.Count()
}
