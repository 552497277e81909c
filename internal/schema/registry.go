package schema

import (
	"mbn/pkg/metadata"

	"github.com/yanun0323/errors"
)

// VenueID is the numeric identifier for a venue.
type VenueID uint16

// Venue describes a trading venue or data publisher.
type Venue struct {
	ID   VenueID
	Name string
}

// Instrument describes a tradable instrument known to the registry.
// TickSize is a fixed-point price (1e-9 units); zero means unknown.
type Instrument struct {
	ID       uint32
	VenueID  VenueID
	Ticker   string
	Name     string
	TickSize int64
}

// Registry stores venue and instrument mappings in a compact form.
type Registry struct {
	venues      []Venue
	instruments []Instrument
	venueByName map[string]VenueID
	byTicker    map[string]int
	byID        map[uint32]int
	maxID       uint32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		venueByName: make(map[string]VenueID),
		byTicker:    make(map[string]int),
		byID:        make(map[uint32]int),
	}
}

// AddVenue registers a new venue and returns its ID.
func (r *Registry) AddVenue(name string) (VenueID, error) {
	if name == "" {
		return 0, errors.New("venue name is empty")
	}
	if id, ok := r.venueByName[name]; ok {
		return id, errors.Errorf("venue already exists: %s", name)
	}
	id := VenueID(len(r.venues) + 1)
	r.venues = append(r.venues, Venue{ID: id, Name: name})
	r.venueByName[name] = id
	return id, nil
}

// AddInstrument registers inst and returns its ID. A zero inst.ID is
// assigned the next free ID above every ID registered so far.
func (r *Registry) AddInstrument(inst Instrument) (uint32, error) {
	if inst.Ticker == "" {
		return 0, errors.New("instrument ticker is empty")
	}
	if _, ok := r.Venue(inst.VenueID); !ok {
		return 0, errors.Errorf("venue id not found: %d", inst.VenueID)
	}
	if idx, ok := r.byTicker[inst.Ticker]; ok {
		return r.instruments[idx].ID, errors.Errorf("instrument already exists: %s", inst.Ticker)
	}
	if inst.ID == 0 {
		inst.ID = r.maxID + 1
	}
	if _, ok := r.byID[inst.ID]; ok {
		return 0, errors.Errorf("instrument id already taken: %d", inst.ID)
	}
	if inst.Name == "" {
		inst.Name = inst.Ticker
	}

	r.instruments = append(r.instruments, inst)
	r.byTicker[inst.Ticker] = len(r.instruments) - 1
	r.byID[inst.ID] = len(r.instruments) - 1
	r.maxID = max(r.maxID, inst.ID)
	return inst.ID, nil
}

// Venue returns the venue by ID.
func (r *Registry) Venue(id VenueID) (Venue, bool) {
	if id == 0 || int(id) > len(r.venues) {
		return Venue{}, false
	}
	return r.venues[id-1], true
}

// Instrument returns the instrument by ID.
func (r *Registry) Instrument(id uint32) (Instrument, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Instrument{}, false
	}
	return r.instruments[idx], true
}

// InstrumentCount returns the number of instruments in the registry.
func (r *Registry) InstrumentCount() int {
	return len(r.instruments)
}

// InstrumentAt returns the instrument by zero-based registration index.
func (r *Registry) InstrumentAt(index int) (Instrument, bool) {
	if index < 0 || index >= len(r.instruments) {
		return Instrument{}, false
	}
	return r.instruments[index], true
}

// VenueIDByName returns the venue ID for a name.
func (r *Registry) VenueIDByName(name string) (VenueID, bool) {
	id, ok := r.venueByName[name]
	return id, ok
}

// InstrumentIDByTicker returns the instrument ID for a ticker.
func (r *Registry) InstrumentIDByTicker(ticker string) (uint32, bool) {
	idx, ok := r.byTicker[ticker]
	if !ok {
		return 0, false
	}
	return r.instruments[idx].ID, true
}

// SymbolMap returns the id -> ticker mapping written into container metadata.
func (r *Registry) SymbolMap() metadata.SymbolMap {
	symbols := metadata.NewSymbolMap()
	for _, inst := range r.instruments {
		symbols.Add(inst.Ticker, inst.ID)
	}
	return symbols
}

// Descriptors returns the registered instruments as metadata descriptors.
func (r *Registry) Descriptors() []metadata.Instrument {
	out := make([]metadata.Instrument, 0, len(r.instruments))
	for _, inst := range r.instruments {
		id := inst.ID
		out = append(out, metadata.NewInstrument(inst.Ticker, inst.Name, &id))
	}
	return out
}

// RegistryFromSymbolMap rebuilds a registry from container metadata under a single venue.
func RegistryFromSymbolMap(venue string, symbols metadata.SymbolMap) (*Registry, error) {
	reg := NewRegistry()
	venueID, err := reg.AddVenue(venue)
	if err != nil {
		return nil, err
	}
	for _, id := range symbols.IDs() {
		ticker, _ := symbols.Ticker(id)
		if _, err := reg.AddInstrument(Instrument{ID: id, VenueID: venueID, Ticker: ticker}); err != nil {
			return nil, errors.Wrapf(err, "instrument %d", id)
		}
	}
	return reg, nil
}
