package config

import (
	"github.com/ethereum/go-ethereum/common"
)

// ChainConfig 每条链上 Schelling 游戏的参数
type ChainConfig struct {
	Name              string          `mapstructure:"name" validate:"required"`
	SecondsPerBlock   uint64          `mapstructure:"seconds_per_block" validate:"gt=0"`
	BlocksPerRound    uint64          `mapstructure:"blocks_per_round" validate:"gte=4"`
	CommitPhaseBlocks uint64          `mapstructure:"commit_phase_blocks" validate:"gt=0,ltfield=BlocksPerRound"`
	RevealPhaseBlocks uint64          `mapstructure:"reveal_phase_blocks" validate:"gt=0,ltfield=BlocksPerRound"`
	StakeDeployBlock  uint64          `mapstructure:"stake_deploy_block"`
	Contracts         ContractsConfig `mapstructure:"contracts"`
}

type ContractsConfig struct {
	Redistribution string `mapstructure:"redistribution" validate:"required,hexadecimal,len=42"`
	StakeRegistry  string `mapstructure:"stake_registry" validate:"required,hexadecimal,len=42"`
	BzzToken       string `mapstructure:"bzz_token" validate:"required,hexadecimal,len=42"`
	PostageStamp   string `mapstructure:"postage_stamp" validate:"required,hexadecimal,len=42"`
	// PriceOracle 可选，为空时不校验 OracleContract
	PriceOracle string `mapstructure:"price_oracle" validate:"omitempty,hexadecimal,len=42"`
}

func (c ContractsConfig) RedistributionAddress() common.Address {
	return common.HexToAddress(c.Redistribution)
}

func (c ContractsConfig) StakeRegistryAddress() common.Address {
	return common.HexToAddress(c.StakeRegistry)
}

func (c ContractsConfig) BzzTokenAddress() common.Address {
	return common.HexToAddress(c.BzzToken)
}

func (c ContractsConfig) PostageStampAddress() common.Address {
	return common.HexToAddress(c.PostageStamp)
}

// PriceOracleAddress 未配置时返回 false
func (c ContractsConfig) PriceOracleAddress() (common.Address, bool) {
	if c.PriceOracle == "" {
		return common.Address{}, false
	}
	return common.HexToAddress(c.PriceOracle), true
}

// withDefaults 未填写的阶段长度按 1/4 轮计算
func (c ChainConfig) withDefaults() ChainConfig {
	if c.CommitPhaseBlocks == 0 {
		c.CommitPhaseBlocks = c.BlocksPerRound / 4
	}
	if c.RevealPhaseBlocks == 0 {
		c.RevealPhaseBlocks = c.BlocksPerRound / 4
	}
	return c
}

// DefaultChains 内置链参数 (goerli / gnosis)
func DefaultChains() map[uint64]ChainConfig {
	return map[uint64]ChainConfig{
		5: {
			Name:              "goerli",
			SecondsPerBlock:   12,
			BlocksPerRound:    152,
			CommitPhaseBlocks: 152 / 4,
			RevealPhaseBlocks: 152 / 4,
			Contracts: ContractsConfig{
				Redistribution: "0xF4963031E8b9f9659CB6ed35E53c031D76480EAD",
				StakeRegistry:  "0x18391158435582D5bE5ac1640ab5E2825F68d3a4",
				BzzToken:       "0x2aC3c1d3e24b45c6C310534Bc2Dd84B5ed576335",
				PostageStamp:   "0x7aAC0f092F7b961145900839Ed6d54b1980F200c",
			},
		},
		100: {
			Name:              "gnosis",
			SecondsPerBlock:   5,
			BlocksPerRound:    152,
			CommitPhaseBlocks: 152 / 4,
			RevealPhaseBlocks: 152 / 4,
			Contracts: ContractsConfig{
				Redistribution: "0xF4963031E8b9f9659CB6ed35E53c031D76480EAD",
				StakeRegistry:  "0x18391158435582D5bE5ac1640ab5E2825F68d3a4",
				BzzToken:       "0xdBF3Ea6F5beE45c02255B2c26a16F300502F68da",
				PostageStamp:   "0x6a1A21ECA3aB28BE85C7Ba22b2d6eAE5907c900E",
			},
		},
	}
}
