package core

import (
	"bytes"
	"sort"
	"sync"

	"gopper-lcd/protocol"
	"gopper-lcd/tinycompress"
)

// Constant represents a firmware constant exposed to the host
type Constant struct {
	Name  string
	Value interface{} // string or integer
}

// Enumeration maps value names to their index, e.g. static_string_id
type Enumeration struct {
	Name   string
	Values []string
}

// Dictionary is the data dictionary the host downloads through identify.
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	enumerations  map[string]*Enumeration
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cachedDict    []byte // zlib compressed JSON
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a new dictionary
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		enumerations:  make(map[string]*Enumeration),
		commandReg:    cmdReg,
		version:       "gopper-lcd-" + protocol.Version,
		buildVersions: "go-tinygo",
	}
}

// RegisterConstant registers a constant in the dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// RegisterEnumeration registers an enumeration in the dictionary
func RegisterEnumeration(name string, values []string) {
	globalDictionary.AddEnumeration(name, values)
}

func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cachedDict = nil
}

func (d *Dictionary) AddEnumeration(name string, values []string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Keep our own copy; callers may reuse their slice.
	valuesCopy := make([]string, len(values))
	copy(valuesCopy, values)
	d.enumerations[name] = &Enumeration{Name: name, Values: valuesCopy}
	d.cachedDict = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cachedDict = nil
}

// SetBuildVersions sets the build versions string
func (d *Dictionary) SetBuildVersions(versions string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buildVersions = versions
	d.cachedDict = nil
}

// BuildDictionary compresses and caches the dictionary. Call it once every
// command, constant and enumeration is registered.
func (d *Dictionary) BuildDictionary() {
	// Fetch from the registry before taking our own lock so the two locks
	// are never nested.
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()

	jsonData := d.buildJSONLocked(commands, responses)

	var buf bytes.Buffer
	w := tinycompress.NewWriter(&buf)
	if _, err := w.Write(jsonData); err != nil {
		DebugPrintln("[dict] compression failed: " + err.Error())
		return
	}
	if err := w.Close(); err != nil {
		DebugPrintln("[dict] compression failed: " + err.Error())
		return
	}
	d.cachedDict = buf.Bytes()
	DebugPrintln("[dict] " + itoa(len(jsonData)) + " bytes json, " + itoa(len(d.cachedDict)) + " bytes compressed")
}

// Generate returns the compressed dictionary, building it on first use.
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cachedDict
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}
	d.BuildDictionary()

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cachedDict
}

// JSON returns the uncompressed dictionary.
func (d *Dictionary) JSON() []byte {
	commands, responses := d.commandReg.GetCommandsAndResponses()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buildJSONLocked(commands, responses)
}

// buildJSONLocked builds the JSON text in Klipper's data dictionary layout.
// Caller must hold the lock.
func (d *Dictionary) buildJSONLocked(commands map[string]int, responses map[string]int) []byte {
	result := make([]byte, 0, 1024)

	result = append(result, `{"version":"`...)
	result = append(result, d.version...)
	result = append(result, `","build_versions":"`...)
	result = append(result, d.buildVersions...)
	result = append(result, `","config":{`...)

	constNames := make([]string, 0, len(d.constants))
	for name := range d.constants {
		constNames = append(constNames, name)
	}
	sort.Strings(constNames)
	for i, name := range constNames {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, name...)
		result = append(result, `":"`...)
		result = append(result, valueToString(d.constants[name].Value)...)
		result = append(result, '"')
	}

	result = append(result, `},"commands":`...)
	result = appendIDMap(result, commands)
	result = append(result, `,"responses":`...)
	result = appendIDMap(result, responses)

	if len(d.enumerations) > 0 {
		result = append(result, `,"enumerations":{`...)
		enumNames := make([]string, 0, len(d.enumerations))
		for name := range d.enumerations {
			enumNames = append(enumNames, name)
		}
		sort.Strings(enumNames)
		for i, name := range enumNames {
			if i > 0 {
				result = append(result, ',')
			}
			result = append(result, '"')
			result = append(result, name...)
			result = append(result, `":{`...)
			first := true
			for idx, value := range d.enumerations[name].Values {
				if value == "" {
					continue
				}
				if !first {
					result = append(result, ',')
				}
				result = append(result, '"')
				result = append(result, value...)
				result = append(result, `":`...)
				result = append(result, itoa(idx)...)
				first = false
			}
			result = append(result, '}')
		}
		result = append(result, '}')
	}

	result = append(result, '}')
	return result
}

// appendIDMap writes {"msg":id,...} ordered by id.
func appendIDMap(result []byte, m map[string]int) []byte {
	msgs := make([]string, 0, len(m))
	for msg := range m {
		msgs = append(msgs, msg)
	}
	sort.Slice(msgs, func(i, j int) bool { return m[msgs[i]] < m[msgs[j]] })

	result = append(result, '{')
	for i, msg := range msgs {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, msg...)
		result = append(result, `":`...)
		result = append(result, itoa(m[msg])...)
	}
	return append(result, '}')
}

// GetChunk returns up to count bytes of the compressed dictionary starting
// at offset. Past the end it returns an empty chunk, which tells the host
// the download is complete.
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}
	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}
	// Copy so the transport never aliases the cache.
	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// GetGlobalDictionary returns the global dictionary instance
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
