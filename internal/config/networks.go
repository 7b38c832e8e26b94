// Copyright (c) 2026 dotandev
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "github.com/stellar/go/network"

type Network string

const (
	NetworkPublic     Network = "public"
	NetworkTestnet    Network = "testnet"
	NetworkFuturenet  Network = "futurenet"
	NetworkStandalone Network = "standalone"
)

// NetworkPreset holds the Horizon endpoint and passphrase of a known network.
type NetworkPreset struct {
	Name              Network
	HorizonURL        string
	NetworkPassphrase string
}

var presets = map[Network]NetworkPreset{
	NetworkPublic: {
		Name:              NetworkPublic,
		HorizonURL:        "https://horizon.stellar.org",
		NetworkPassphrase: network.PublicNetworkPassphrase,
	},
	NetworkTestnet: {
		Name:              NetworkTestnet,
		HorizonURL:        "https://horizon-testnet.stellar.org",
		NetworkPassphrase: network.TestNetworkPassphrase,
	},
	NetworkFuturenet: {
		Name:              NetworkFuturenet,
		HorizonURL:        "https://horizon-futurenet.stellar.org",
		NetworkPassphrase: network.FutureNetworkPassphrase,
	},
	NetworkStandalone: {
		Name:              NetworkStandalone,
		HorizonURL:        "http://localhost:8000",
		NetworkPassphrase: "Standalone Network ; February 2017",
	},
}

// LookupNetwork returns the preset for a known network name.
func LookupNetwork(n Network) (NetworkPreset, bool) {
	p, ok := presets[n]
	return p, ok
}
