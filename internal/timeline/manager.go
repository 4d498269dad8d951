package timeline

import (
	"context"
	"errors"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/communication/internal/model"
	"github.com/emrgen/communication/internal/store"
)

// DefaultMaxDepth caps the circular timeline-link traversal at three hops,
// matching the documented behavior: a loop closing beyond the cap is not
// detected. Set MaxDepth to 0 on the manager for an unbounded walk.
const DefaultMaxDepth = 3

// ErrCircularLinking is returned when a communication is linked, directly or
// through other communications, back to itself.
var ErrCircularLinking = errors.New("communication records are circularly linked")

type linkKey struct {
	doctype string
	name    string
}

// Resolver looks up communication records by name.
type Resolver interface {
	GetCommunication(ctx context.Context, id string) (*model.Communication, error)
}

// Saver persists the link rows of a communication.
type Saver interface {
	ReplaceLinks(ctx context.Context, id string, links []*model.CommunicationLink) error
}

// Manager maintains the timeline links of communications and validates them
// against circular reference chains before save.
type Manager struct {
	resolver Resolver
	saver    Saver

	// MaxDepth bounds the circular link traversal in hops. Zero means unbounded.
	MaxDepth int
}

// NewManager creates a link manager backed by the given store.
func NewManager(s store.Store) *Manager {
	return NewManagerWith(s, s)
}

// NewManagerWith creates a link manager with explicit collaborators.
func NewManagerWith(resolver Resolver, saver Saver) *Manager {
	return &Manager{
		resolver: resolver,
		saver:    saver,
		MaxDepth: DefaultMaxDepth,
	}
}

// Deduplicate collapses repeated (doctype, name) pairs in the communication's
// links, preserving first-occurrence order. It reports whether any duplicate
// was dropped; when nothing changed the link slice is left untouched so no
// needless persistence write follows.
func (m *Manager) Deduplicate(comm *model.Communication) bool {
	if len(comm.Links) == 0 {
		return false
	}

	seen := mapset.NewSet[linkKey]()
	links := make([]*model.CommunicationLink, 0, len(comm.Links))
	duplicate := false

	for _, link := range comm.Links {
		doctype, name := link.Pair()
		key := linkKey{doctype: doctype, name: name}
		if !seen.Add(key) {
			duplicate = true
			continue
		}
		links = append(links, link)
	}

	if duplicate {
		for i, link := range links {
			link.Position = i
		}
		comm.Links = links
	}

	return duplicate
}

// AddLink appends a link to the communication, even when an equal pair already
// exists; deduplication is a separate explicit pass. With autosave the link
// rows are persisted immediately, bypassing permission checks.
func (m *Manager) AddLink(ctx context.Context, comm *model.Communication, linkDoctype, linkName string, autosave bool) error {
	comm.Links = append(comm.Links, &model.CommunicationLink{
		CommunicationID: comm.ID,
		LinkDoctype:     linkDoctype,
		LinkName:        linkName,
		Position:        len(comm.Links),
	})

	if autosave {
		return m.saver.ReplaceLinks(ctx, comm.ID, comm.Links)
	}

	return nil
}

// RemoveLink removes every link matching the (doctype, name) pair exactly.
func (m *Manager) RemoveLink(ctx context.Context, comm *model.Communication, linkDoctype, linkName string, autosave bool) error {
	links := comm.Links[:0]
	for _, link := range comm.Links {
		doctype, name := link.Pair()
		if doctype == linkDoctype && name == linkName {
			continue
		}
		link.Position = len(links)
		links = append(links, link)
	}
	comm.Links = links

	if autosave {
		return m.saver.ReplaceLinks(ctx, comm.ID, comm.Links)
	}

	return nil
}

// GetLinks returns the current ordered links of the communication.
func (m *Manager) GetLinks(comm *model.Communication) []*model.CommunicationLink {
	return comm.Links
}

// DetectCircularLinks walks the communication-type timeline links of comm up
// to MaxDepth hops and fails with ErrCircularLinking when a resolved record
// is comm itself. Targets missing from the store are skipped; a visited set
// keeps the walk from resolving the same record twice.
func (m *Manager) DetectCircularLinks(ctx context.Context, comm *model.Communication) error {
	visited := mapset.NewSet[string]()

	var walk func(name string, depth int) error
	walk = func(name string, depth int) error {
		if m.MaxDepth > 0 && depth > m.MaxDepth {
			return nil
		}

		target, err := m.resolver.GetCommunication(ctx, name)
		if errors.Is(err, store.ErrCommunicationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if target.ID == comm.ID {
			return ErrCircularLinking
		}

		if !visited.Add(target.ID) {
			return nil
		}

		for _, link := range target.Links {
			if link.LinkDoctype != model.DoctypeCommunication {
				continue
			}
			if err := walk(link.LinkName, depth+1); err != nil {
				return err
			}
		}

		return nil
	}

	for _, link := range comm.Links {
		if link.LinkDoctype != model.DoctypeCommunication {
			continue
		}
		if err := walk(link.LinkName, 1); err != nil {
			return err
		}
	}

	return nil
}

// ValidateReference guards the primary reference link. When comm is filed
// against another communication, the chain of parent references is walked
// until it leaves communication records; a parent referring back to comm, or
// any revisited record, fails with ErrCircularLinking.
func (m *Manager) ValidateReference(ctx context.Context, comm *model.Communication) error {
	if comm.ReferenceDoctype != model.DoctypeCommunication || comm.ReferenceName == "" {
		return nil
	}

	if comm.ReferenceName == comm.ID {
		return ErrCircularLinking
	}

	visited := mapset.NewSet[string](comm.ID)
	name := comm.ReferenceName

	for {
		parent, err := m.resolver.GetCommunication(ctx, name)
		if errors.Is(err, store.ErrCommunicationNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if !visited.Add(parent.ID) {
			return ErrCircularLinking
		}

		if parent.ReferenceDoctype != model.DoctypeCommunication || parent.ReferenceName == "" {
			return nil
		}

		if parent.ReferenceName == comm.ID {
			return ErrCircularLinking
		}

		name = parent.ReferenceName
	}
}
