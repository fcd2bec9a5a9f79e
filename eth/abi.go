package eth

import (
	_ "embed"
	"encoding/json"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/rs/zerolog/log"
)

//go:embed ABI/ERC20.json
var ERC20_ABI_JSON []byte
var ERC20 abi.ABI

//go:embed ABI/Staking.json
var STAKING_ABI_JSON []byte
var STAKING abi.ABI

func init() {
	LoadABIs()
}

func LoadABIs() {
	err := json.Unmarshal(ERC20_ABI_JSON, &ERC20)
	if err != nil {
		log.Fatal().Msgf("Error unmarshaling ERC20 ABI: %v\n", err)
	}

	err = json.Unmarshal(STAKING_ABI_JSON, &STAKING)
	if err != nil {
		log.Fatal().Msgf("Error unmarshaling Staking ABI: %v\n", err)
	}
}

var knownABIs = []struct {
	name string
	abi  *abi.ABI
}{
	{"Staking", &STAKING},
	{"Token", &ERC20},
}

// MethodName looks the 4 byte selector up in the embedded ABIs.
func MethodName(data []byte) (string, string) {
	if len(data) < 4 {
		return "", ""
	}
	for _, k := range knownABIs {
		if m, err := k.abi.MethodById(data[:4]); err == nil {
			return k.name, m.Name
		}
	}
	return "", ""
}
