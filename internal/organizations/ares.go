package organizations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrCompanyNotFound indicates the registry has no record for the tax id.
var ErrCompanyNotFound = errors.New("organizations: company not found in registry")

// ErrInvalidTaxID rejects malformed identifiers before hitting the registry.
var ErrInvalidTaxID = errors.New("organizations: tax id must be 8 digits")

// Company is the registry record used to prefill an organization.
type Company struct {
	TaxID   string
	VATID   string
	Name    string
	Address string
}

// RegistryPort looks up a company by its tax identifier.
type RegistryPort interface {
	Lookup(ctx context.Context, taxID string) (Company, error)
}

// AresClient queries the Czech ARES business registry.
type AresClient struct {
	baseURL string
	http    *http.Client
}

// NewAresClient constructs a registry client. baseURL points at the
// ekonomicke-subjekty REST root.
func NewAresClient(baseURL string) *AresClient {
	return &AresClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type aresAddress struct {
	NazevUlice      string `json:"nazevUlice"`
	CisloDomovni    int    `json:"cisloDomovni"`
	CisloOrientacni int    `json:"cisloOrientacni"`
	NazevObce       string `json:"nazevObce"`
	PSC             int    `json:"psc"`
}

type aresSubject struct {
	ICO           string      `json:"ico"`
	DIC           string      `json:"dic"`
	ObchodniJmeno string      `json:"obchodniJmeno"`
	Sidlo         aresAddress `json:"sidlo"`
}

// Lookup fetches one subject by ICO.
func (c *AresClient) Lookup(ctx context.Context, taxID string) (Company, error) {
	ico := strings.ReplaceAll(taxID, " ", "")
	if !validICO(ico) {
		return Company{}, ErrInvalidTaxID
	}

	url := c.baseURL + "/ekonomicke-subjekty/" + ico
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Company{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Company{}, fmt.Errorf("organizations: registry lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Company{}, ErrCompanyNotFound
	case resp.StatusCode != http.StatusOK:
		return Company{}, fmt.Errorf("organizations: registry returned %d", resp.StatusCode)
	}

	var subject aresSubject
	if err := json.NewDecoder(resp.Body).Decode(&subject); err != nil {
		return Company{}, fmt.Errorf("organizations: registry payload: %w", err)
	}
	return Company{
		TaxID:   subject.ICO,
		VATID:   subject.DIC,
		Name:    subject.ObchodniJmeno,
		Address: formatAddress(subject.Sidlo),
	}, nil
}

func validICO(ico string) bool {
	if len(ico) != 8 {
		return false
	}
	for _, r := range ico {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// formatAddress renders "Ulice 123/4, 123 45 Obec" from the registry
// address parts, skipping whatever is missing.
func formatAddress(a aresAddress) string {
	var street string
	if a.NazevUlice != "" {
		street = a.NazevUlice
	}
	if a.CisloDomovni > 0 {
		number := fmt.Sprintf("%d", a.CisloDomovni)
		if a.CisloOrientacni > 0 {
			number += fmt.Sprintf("/%d", a.CisloOrientacni)
		}
		if street != "" {
			street += " " + number
		} else {
			street = number
		}
	}

	var city string
	if a.PSC > 0 {
		psc := fmt.Sprintf("%05d", a.PSC)
		city = psc[:3] + " " + psc[3:]
	}
	if a.NazevObce != "" {
		if city != "" {
			city += " " + a.NazevObce
		} else {
			city = a.NazevObce
		}
	}

	switch {
	case street != "" && city != "":
		return street + ", " + city
	case street != "":
		return street
	default:
		return city
	}
}
