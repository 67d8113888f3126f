// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rtl8139

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds chip tuning values.  Register values are written as given
// except for the receive ring length bits which always follow RxBufIdx.
type Config struct {
	// Interface name; derived from bus address when empty.
	Name string `yaml:"name"`

	// Receive ring is 8k << RxBufIdx bytes.  64k (3) is refused: the
	// chip may lock up.
	RxBufIdx uint `yaml:"rx_buf_idx"`

	RxConfig uint32 `yaml:"rx_config"`
	// DMA burst size etc.
	TxConfig uint32 `yaml:"tx_config"`

	// Early transmit threshold in bytes; rounded down to 32 byte units.
	TxFifoThresh uint `yaml:"tx_fifo_thresh"`

	// Max frames taken from receive ring per interrupt.
	RxBudget int `yaml:"rx_budget"`

	// Max hardware fault messages logged per open.
	FaultLogLimit uint32 `yaml:"fault_log_limit"`
}

const (
	max_rx_buf_idx     = 2
	max_tx_fifo_thresh = 0x3f * 32
)

func DefaultConfig() *Config {
	return &Config{
		RxBufIdx:      2,
		RxConfig:      0x0000178e,
		TxConfig:      0x00000600,
		TxFifoThresh:  256,
		RxBudget:      64,
		FaultLogLimit: 16,
	}
}

func (c *Config) Validate() error {
	if c.RxBufIdx > max_rx_buf_idx {
		return fmt.Errorf("rtl8139: rx_buf_idx %d > %d", c.RxBufIdx, max_rx_buf_idx)
	}
	if c.RxBudget <= 0 {
		return fmt.Errorf("rtl8139: rx_budget %d must be positive", c.RxBudget)
	}
	if c.TxFifoThresh > max_tx_fifo_thresh {
		return fmt.Errorf("rtl8139: tx_fifo_thresh %d > %d", c.TxFifoThresh, max_tx_fifo_thresh)
	}
	return nil
}

// ParseConfig reads YAML over defaults.
func ParseConfig(b []byte) (c *Config, err error) {
	c = DefaultConfig()
	if err = yaml.Unmarshal(b, c); err != nil {
		err = fmt.Errorf("rtl8139: config: %w", err)
		return
	}
	err = c.Validate()
	return
}

func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseConfig(b)
}

func (c *Config) rx_buf_len() uint { return 8192 << c.RxBufIdx }

// Total ring allocation: tail pad for frames running past end of ring.
func (c *Config) rx_buf_tot_len() uint { return c.rx_buf_len() + rx_buf_pad + rx_buf_wrap_pad }

func (c *Config) rx_config() uint32 {
	return c.RxConfig&^rx_cfg_buf_len_mask | uint32(c.RxBufIdx)<<rx_cfg_buf_len_shift
}

// Initial early transmit threshold bits for tx_status.
func (c *Config) tx_flag() uint32 {
	return uint32(c.TxFifoThresh/32) << tx_early_thresh_shift & tx_early_thresh_mask
}
