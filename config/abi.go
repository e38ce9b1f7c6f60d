package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ABI file names looked up inside ABI_DIR.
const (
	VerificationABIFile = "verification.json"
	RegistryABIFile     = "registry.json"
	MarketplaceABIFile  = "marketplace.json"
)

// ContractABIs holds raw ABI JSON per contract. A nil entry means the
// built-in ABI should be used.
type ContractABIs struct {
	Verification []byte
	Registry     []byte
	Marketplace  []byte
}

// LoadContractABIs reads the ABI overrides from dir. Missing files are not an
// error; an empty dir returns no overrides at all.
func LoadContractABIs(dir string) (*ContractABIs, error) {
	abis := &ContractABIs{}
	if dir == "" {
		return abis, nil
	}

	// Get absolute path to the ABI directory
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	targets := []struct {
		name string
		dst  *[]byte
	}{
		{VerificationABIFile, &abis.Verification},
		{RegistryABIFile, &abis.Registry},
		{MarketplaceABIFile, &abis.Marketplace},
	}
	for _, target := range targets {
		data, err := readABIFile(filepath.Join(absDir, target.name))
		if err != nil {
			return nil, err
		}
		*target.dst = data
	}

	return abis, nil
}

// readABIFile accepts either a bare ABI array or a compiler artifact that
// carries the ABI under an "abi" key.
func readABIFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ABI file %s: %w", path, err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var artifact struct {
			ABI json.RawMessage `json:"abi"`
		}
		if err := json.Unmarshal(trimmed, &artifact); err != nil {
			return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
		}
		if len(artifact.ABI) == 0 {
			return nil, fmt.Errorf("artifact %s has no abi field", path)
		}
		return artifact.ABI, nil
	}

	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("ABI file %s is not valid JSON", path)
	}
	return trimmed, nil
}
