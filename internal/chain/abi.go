package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"estatechain/server/config"
)

// Built-in ABIs for the three contracts. Only the members the workflow uses
// are listed; ABI_DIR can supply the full compiler output instead.
const (
	verificationABI = `[
  {"type":"function","name":"addProperty","stateMutability":"nonpayable",
   "inputs":[{"name":"deed","type":"string"}],
   "outputs":[{"name":"propertyId","type":"uint256"}]},
  {"type":"function","name":"verifyProperty","stateMutability":"nonpayable",
   "inputs":[{"name":"propertyId","type":"uint256"}],
   "outputs":[{"name":"verified","type":"bool"}]},
  {"type":"event","name":"PropertyAdded","anonymous":false,
   "inputs":[{"name":"propertyId","type":"uint256","indexed":false},
             {"name":"owner","type":"address","indexed":false}]},
  {"type":"event","name":"PropertyVerified","anonymous":false,
   "inputs":[{"name":"propertyId","type":"uint256","indexed":false}]}
]`

	registryABI = `[
  {"type":"function","name":"createOrDetailedRealEstateToken","stateMutability":"nonpayable",
   "inputs":[{"name":"propertyId","type":"uint256"},
             {"name":"description","type":"string"},
             {"name":"location","type":"string"},
             {"name":"price","type":"uint256"},
             {"name":"tokenURI","type":"string"},
             {"name":"propertyType","type":"uint8"},
             {"name":"buildingType","type":"uint8"},
             {"name":"storeys","type":"uint256"},
             {"name":"landSize","type":"uint256"},
             {"name":"propertyTaxes","type":"uint256"},
             {"name":"parkingType","type":"uint8"}],
   "outputs":[{"name":"tokenId","type":"uint256"}]},
  {"type":"function","name":"viewRealEstate","stateMutability":"view",
   "inputs":[{"name":"propertyId","type":"uint256"}],
   "outputs":[{"name":"propertyId","type":"uint256"},
              {"name":"description","type":"string"},
              {"name":"location","type":"string"},
              {"name":"price","type":"uint256"},
              {"name":"tokenURI","type":"string"},
              {"name":"propertyType","type":"uint8"},
              {"name":"buildingType","type":"uint8"},
              {"name":"storeys","type":"uint256"},
              {"name":"landSize","type":"uint256"},
              {"name":"propertyTaxes","type":"uint256"},
              {"name":"parkingType","type":"uint8"},
              {"name":"verified","type":"bool"},
              {"name":"owner","type":"address"}]},
  {"type":"function","name":"totalSupply","stateMutability":"view",
   "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"event","name":"Transfer","anonymous":false,
   "inputs":[{"name":"from","type":"address","indexed":true},
             {"name":"to","type":"address","indexed":true},
             {"name":"tokenId","type":"uint256","indexed":true}]}
]`

	marketplaceABI = `[
  {"type":"function","name":"buyProperty","stateMutability":"payable",
   "inputs":[{"name":"propertyId","type":"uint256"}],"outputs":[]}
]`
)

// Method and event names used against the contracts.
const (
	methodAddProperty    = "addProperty"
	methodVerifyProperty = "verifyProperty"
	methodMint           = "createOrDetailedRealEstateToken"
	methodViewRealEstate = "viewRealEstate"
	methodTotalSupply    = "totalSupply"
	methodBuyProperty    = "buyProperty"

	eventPropertyAdded = "PropertyAdded"
	eventTransfer      = "Transfer"
)

// Contracts holds the parsed ABIs of the verification, registry and
// marketplace contracts.
type Contracts struct {
	Verification abi.ABI
	Registry     abi.ABI
	Marketplace  abi.ABI
}

// ParseContracts parses the overrides in abis, falling back to the built-in
// ABIs for any contract without one.
func ParseContracts(abis *config.ContractABIs) (*Contracts, error) {
	if abis == nil {
		abis = &config.ContractABIs{}
	}

	verification, err := parseABI("verification", abis.Verification, verificationABI)
	if err != nil {
		return nil, err
	}
	registry, err := parseABI("registry", abis.Registry, registryABI)
	if err != nil {
		return nil, err
	}
	marketplace, err := parseABI("marketplace", abis.Marketplace, marketplaceABI)
	if err != nil {
		return nil, err
	}

	contracts := &Contracts{
		Verification: verification,
		Registry:     registry,
		Marketplace:  marketplace,
	}
	if err := contracts.check(); err != nil {
		return nil, err
	}
	return contracts, nil
}

// DefaultContracts returns the built-in ABIs.
func DefaultContracts() *Contracts {
	contracts, err := ParseContracts(nil)
	if err != nil {
		panic(fmt.Sprintf("built-in ABI is invalid: %v", err))
	}
	return contracts
}

func parseABI(name string, override []byte, fallback string) (abi.ABI, error) {
	source := fallback
	if len(override) > 0 {
		source = string(override)
	}
	parsed, err := abi.JSON(strings.NewReader(source))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse %s ABI: %w", name, err)
	}
	return parsed, nil
}

// check fails early when an override ABI lacks a member the workflow calls.
func (c *Contracts) check() error {
	required := []struct {
		contract string
		abi      abi.ABI
		methods  []string
		events   []string
	}{
		{"verification", c.Verification, []string{methodAddProperty, methodVerifyProperty}, []string{eventPropertyAdded}},
		{"registry", c.Registry, []string{methodMint, methodViewRealEstate, methodTotalSupply}, nil},
		{"marketplace", c.Marketplace, []string{methodBuyProperty}, nil},
	}

	for _, r := range required {
		for _, m := range r.methods {
			if _, ok := r.abi.Methods[m]; !ok {
				return fmt.Errorf("%s ABI has no method %s", r.contract, m)
			}
		}
		for _, e := range r.events {
			if _, ok := r.abi.Events[e]; !ok {
				return fmt.Errorf("%s ABI has no event %s", r.contract, e)
			}
		}
	}
	return nil
}
