package device

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/ism7-bridge/internal/ism7/catalog"
	"github.com/nerrad567/ism7-bridge/internal/ism7/converter"
)

// DefaultTopicPrefix is the first topic segment of every device topic.
const DefaultTopicPrefix = "Wolf"

// Logger is the logging interface used by the registry.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Config is one configured device entry.
type Config struct {
	// ReadBusAddress is the bus address values are read from, e.g. "0x08".
	ReadBusAddress string

	// WriteBusAddress is the bus address writes go to. Empty derives it
	// as read address minus 5.
	WriteBusAddress string

	// Template is the device template name or numeric id.
	Template string

	// Parameters is the PTID allow-list. Empty exposes every parameter of
	// the template.
	Parameters []int
}

// Options configure naming in the registry.
type Options struct {
	// TopicPrefix is the first topic segment. Default: "Wolf".
	TopicPrefix string

	// Translate replaces display names and labels using the catalog
	// translation table.
	Translate bool
}

// RunningParameter binds a parameter template to its own converter instance.
type RunningParameter struct {
	Template          catalog.ParameterTemplate
	ConverterTemplate converter.Template
	Converter         converter.Converter
	Name              string
	MQTTName          string
	Writable          bool
	IsDuplicate       bool
}

// PTID returns the parameter template id.
func (p *RunningParameter) PTID() int { return p.Template.PTID }

func (p *RunningParameter) readService(service *int) bool {
	return service == nil || (p.ConverterTemplate.ServiceRead != nil && *p.ConverterTemplate.ServiceRead == *service)
}

func (p *RunningParameter) writeService(service *int) bool {
	return service == nil || (p.ConverterTemplate.ServiceWrite != nil && *p.ConverterTemplate.ServiceWrite == *service)
}

// RunningDevice is one live device instance.
type RunningDevice struct {
	IP              string
	ReadBusAddress  BusAddress
	WriteBusAddress BusAddress
	Template        catalog.DeviceTemplate
	Name            string
	Topic           string
	Parameters      []*RunningParameter
}

// Info is a read-only summary of a running device.
type Info struct {
	Name            string
	Topic           string
	ReadBusAddress  BusAddress
	WriteBusAddress BusAddress
	TemplateID      int
	Parameters      int
}

// ReadRequest is one telegram to pull or subscribe to.
type ReadRequest struct {
	BusAddress BusAddress
	Service    *int
	TelegramID int
}

// Write is one register write addressed to a device.
type Write struct {
	BusAddress BusAddress
	Service    *int
	Telegram   converter.Telegram
}

type deviceConfig struct {
	read     BusAddress
	write    BusAddress
	template catalog.DeviceTemplate
	allow    []int
}

// Registry owns every running device, parameter and converter instance.
//
// Thread Safety: All methods are safe for concurrent use. Converter state
// is only touched under the registry lock.
type Registry struct {
	catalog *catalog.Catalog
	configs []deviceConfig
	opts    Options
	logger  Logger

	mu      sync.Mutex
	devices []*RunningDevice
}

// NewRegistry validates the device configuration against the catalog.
//
// Parameters:
//   - cat: Static catalog
//   - configs: Configured device entries
//   - opts: Naming options
//   - logger: Optional logger (may be nil)
//
// Returns:
//   - *Registry: Empty registry; devices are added with AddDevice
//   - error: If a bus address or template reference is invalid
func NewRegistry(cat *catalog.Catalog, configs []Config, opts Options, logger Logger) (*Registry, error) {
	if cat == nil {
		return nil, fmt.Errorf("%w: catalog is required", ErrInvalidConfig)
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = DefaultTopicPrefix
	}
	if logger == nil {
		logger = noopLogger{}
	}

	r := &Registry{catalog: cat, opts: opts, logger: logger}

	for i, c := range configs {
		read, err := ParseBusAddress(c.ReadBusAddress)
		if err != nil {
			return nil, fmt.Errorf("device %d: read bus address: %w", i, err)
		}

		var write BusAddress
		if c.WriteBusAddress != "" {
			write, err = ParseBusAddress(c.WriteBusAddress)
		} else {
			write, err = DefaultWriteAddress(read)
		}
		if err != nil {
			return nil, fmt.Errorf("device %d: write bus address: %w", i, err)
		}

		tmpl, ok := lookupTemplate(cat, c.Template)
		if !ok {
			return nil, fmt.Errorf("%w: device %d: %q", ErrUnknownTemplate, i, c.Template)
		}

		for _, ptid := range c.Parameters {
			if !slices.Contains(tmpl.Parameters, ptid) {
				return nil, fmt.Errorf("%w: device %d: parameter %d is not part of template %s",
					ErrInvalidConfig, i, ptid, tmpl.Name)
			}
		}

		r.configs = append(r.configs, deviceConfig{read: read, write: write, template: tmpl, allow: c.Parameters})
	}

	return r, nil
}

func lookupTemplate(cat *catalog.Catalog, ref string) (catalog.DeviceTemplate, bool) {
	if id, err := strconv.Atoi(strings.TrimSpace(ref)); err == nil {
		return cat.Device(id)
	}
	return cat.DeviceByName(ref)
}

// AddDevice instantiates every configured device on readBusAddress.
// Devices already running for the same bus address and template are kept
// as they are, so repeated system-config responses are harmless.
//
// Returns:
//   - int: Number of devices added by this call
//   - error: If a converter cannot be created
func (r *Registry) AddDevice(ip string, readBusAddress BusAddress) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	added := 0
	for _, c := range r.configs {
		if c.read != readBusAddress || r.hasDevice(c.read, c.template.ID) {
			continue
		}

		d, err := r.newDevice(ip, c)
		if err != nil {
			return added, err
		}
		r.devices = append(r.devices, d)
		added++

		r.logger.Info("device added",
			"device", d.Name,
			"topic", d.Topic,
			"read_ba", d.ReadBusAddress.String(),
			"write_ba", d.WriteBusAddress.String(),
			"parameters", len(d.Parameters),
		)
	}
	return added, nil
}

func (r *Registry) hasDevice(ba BusAddress, templateID int) bool {
	for _, d := range r.devices {
		if d.ReadBusAddress == ba && d.Template.ID == templateID {
			return true
		}
	}
	return false
}

func (r *Registry) newDevice(ip string, c deviceConfig) (*RunningDevice, error) {
	name := r.display(c.template.Name)
	d := &RunningDevice{
		IP:              ip,
		ReadBusAddress:  c.read,
		WriteBusAddress: c.write,
		Template:        c.template,
		Name:            name,
		Topic:           fmt.Sprintf("%s/%s/%s_%s", r.opts.TopicPrefix, ip, MQTTName(name), c.read),
	}

	for _, ptid := range c.template.Parameters {
		if len(c.allow) > 0 && !slices.Contains(c.allow, ptid) {
			continue
		}
		pt, ok := r.catalog.Parameter(ptid)
		if !ok {
			continue
		}
		ct := r.catalog.Converter(ptid)
		conv, err := converter.New(ct, r.logger)
		if err != nil {
			return nil, fmt.Errorf("device %s parameter %d: %w", d.Name, ptid, err)
		}

		pname := r.display(pt.Name)
		d.Parameters = append(d.Parameters, &RunningParameter{
			Template:          pt,
			ConverterTemplate: ct,
			Converter:         conv.Clone(),
			Name:              pname,
			MQTTName:          MQTTName(pname),
			Writable:          pt.Writable,
		})
	}

	markDuplicates(d.Parameters)
	return d, nil
}

// markDuplicates flags every parameter whose name is shared with another
// parameter of the same device.
func markDuplicates(params []*RunningParameter) {
	counts := make(map[string]int, len(params))
	for _, p := range params {
		counts[p.Name]++
	}
	for _, p := range params {
		p.IsDuplicate = counts[p.Name] > 1
	}
}

func (r *Registry) display(s string) string {
	if r.opts.Translate {
		return r.catalog.Translate(s)
	}
	return s
}

// ProcessRead routes a read telegram to the parameters of devices
// reading from ba. A non-nil service must match the parameter's read
// service number.
func (r *Registry) ProcessRead(ba BusAddress, telegramID int, service *int, low, high byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices {
		if d.ReadBusAddress != ba {
			continue
		}
		for _, p := range d.Parameters {
			if !p.readService(service) || !p.Converter.CanProcess(telegramID) {
				continue
			}
			p.Converter.AddTelegram(telegramID, low, high)
		}
	}
}

// ProcessWrite routes an acknowledged write telegram to the parameters of
// devices writing to ba. A non-nil service must match the parameter's
// write service number.
func (r *Registry) ProcessWrite(ba BusAddress, telegramID int, service *int, low, high byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, d := range r.devices {
		if d.WriteBusAddress != ba {
			continue
		}
		for _, p := range d.Parameters {
			if !p.writeService(service) || !p.Converter.CanProcess(telegramID) {
				continue
			}
			p.Converter.AddTelegram(telegramID, low, high)
		}
	}
}

// ReadRequests returns the telegrams declared by every parameter of the
// devices reading from ba, deduplicated and ordered by telegram id.
func (r *Registry) ReadRequests(ba BusAddress) []ReadRequest {
	r.mu.Lock()
	defer r.mu.Unlock()

	type key struct {
		service int
		id      int
	}
	seen := make(map[key]bool)
	var out []ReadRequest

	for _, d := range r.devices {
		if d.ReadBusAddress != ba {
			continue
		}
		for _, p := range d.Parameters {
			svc := -1
			if p.ConverterTemplate.ServiceRead != nil {
				svc = *p.ConverterTemplate.ServiceRead
			}
			for _, id := range p.Converter.TelegramIDs() {
				k := key{service: svc, id: id}
				if seen[k] {
					continue
				}
				seen[k] = true
				out = append(out, ReadRequest{BusAddress: ba, Service: p.ConverterTemplate.ServiceRead, TelegramID: id})
			}
		}
	}

	slices.SortStableFunc(out, func(a, b ReadRequest) int { return a.TelegramID - b.TelegramID })
	return out
}

// Devices returns a summary of every running device.
func (r *Registry) Devices() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Info, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, Info{
			Name:            d.Name,
			Topic:           d.Topic,
			ReadBusAddress:  d.ReadBusAddress,
			WriteBusAddress: d.WriteBusAddress,
			TemplateID:      d.Template.ID,
			Parameters:      len(d.Parameters),
		})
	}
	return out
}

// ConfiguredAddresses returns the distinct configured read bus addresses.
func (r *Registry) ConfiguredAddresses() []BusAddress {
	var out []BusAddress
	for _, c := range r.configs {
		if !slices.Contains(out, c.read) {
			out = append(out, c.read)
		}
	}
	return out
}
