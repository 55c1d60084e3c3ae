package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/bcgov/nr-forest-client-sub003/internal/submission"
	"github.com/bcgov/nr-forest-client-sub003/pkg/names"
)

// Client is a legacy registry fixture record.
type Client struct {
	ClientNumber        string
	Name                string // organization name, or surname for individuals
	FirstName           string
	IncorporationNumber string
	Birthdate           string
	Individual          bool
	DoingBusinessAs     []string
}

// Memory is a fixture-backed registry for tests and local runs.
type Memory struct {
	mu      sync.RWMutex
	clients []Client
}

// NewMemory constructs a registry seeded with the given clients.
func NewMemory(clients ...Client) *Memory {
	return &Memory{clients: clients}
}

// Add appends fixture clients.
func (m *Memory) Add(clients ...Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = append(m.clients, clients...)
}

func (m *Memory) FindByIncorporationNumber(_ context.Context, incorporationNumber string) ([]string, error) {
	return m.collect(func(c Client) bool {
		return c.IncorporationNumber != "" && c.IncorporationNumber == incorporationNumber
	}), nil
}

func (m *Memory) FindByOrganizationName(_ context.Context, name string) ([]string, error) {
	want := names.Normalize(name)
	return m.collect(func(c Client) bool {
		return !c.Individual && names.Normalize(c.Name) == want
	}), nil
}

func (m *Memory) FindByIndividual(_ context.Context, firstName, lastName, birthdate string) ([]string, error) {
	first, last := names.Normalize(firstName), names.Normalize(lastName)
	return m.collect(func(c Client) bool {
		return c.Individual &&
			names.Normalize(c.FirstName) == first &&
			names.Normalize(c.Name) == last &&
			c.Birthdate == birthdate
	}), nil
}

func (m *Memory) FindByIndividualNames(_ context.Context, firstName, lastName string) ([]string, error) {
	first, last := names.Normalize(firstName), names.Normalize(lastName)
	return m.collect(func(c Client) bool {
		return c.Individual &&
			names.Normalize(c.FirstName) == first &&
			names.Normalize(c.Name) == last
	}), nil
}

func (m *Memory) FindByDoingBusinessAs(_ context.Context, name string) ([]string, error) {
	want := names.Normalize(name)
	return m.collect(func(c Client) bool {
		for _, alias := range c.DoingBusinessAs {
			if names.Normalize(alias) == want {
				return true
			}
		}
		return false
	}), nil
}

// CreateClient records an approved submission as a fixture client with a
// sequentially assigned number.
func (m *Memory) CreateClient(_ context.Context, _ *submission.Submission, detail *submission.Detail) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	number := fmt.Sprintf("%08d", len(m.clients)+1)
	c := Client{
		ClientNumber:        number,
		Name:                detail.OrganizationName,
		IncorporationNumber: detail.IncorporationNumber,
		Birthdate:           detail.Birthdate,
	}
	if detail.ClientType == submission.ClientTypeIndividual {
		c.Name = detail.LastName
		c.FirstName = detail.FirstName
		c.Individual = true
	}
	m.clients = append(m.clients, c)
	return number, nil
}

func (m *Memory) collect(match func(Client) bool) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var numbers []string
	for _, c := range m.clients {
		if match(c) {
			numbers = append(numbers, c.ClientNumber)
		}
	}
	return numbers
}
