package main

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"

	"github.com/blkrelay/relaynode/relay"
	"github.com/blkrelay/relaynode/utils"
)

type config struct {
	IP       string `json:"ip"`
	Port     int    `json:"port"`
	HTTPPort int    `json:"http_port"`
	LogLevel int    `json:"log_level"`

	UseOldFlags       bool `json:"use_old_flags"`
	CheckMerkle       bool `json:"check_merkle"`
	SendCacheCapacity int  `json:"send_cache_capacity"`
	RecvCacheCapacity int  `json:"recv_cache_capacity"`
	SeenBlockCapacity int  `json:"seen_block_capacity"`

	Peers []string `json:"peers"`
}

func parseConfig(cf string) (*config, error) {
	if len(cf) == 0 {
		return nil, fmt.Errorf("miss config file")
	}

	if err := utils.AccessCheck(cf); err != nil {
		return nil, err
	}

	jsonContent, err := ioutil.ReadFile(cf)
	if err != nil {
		return nil, fmt.Errorf("read config file failed:%v", err)
	}

	conf := &config{}
	if err := json.Unmarshal(jsonContent, conf); err != nil {
		return nil, fmt.Errorf("config parse failed:%v", err)
	}

	if err := verifyConfig(conf); err != nil {
		return nil, err
	}

	return conf, nil
}

func verifyConfig(c *config) error {
	if ip := net.ParseIP(c.IP); ip == nil || ip.To4() == nil {
		return fmt.Errorf("invalid IPv4:%s", c.IP)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port:%d", c.Port)
	}

	if c.HTTPPort <= 0 || c.HTTPPort > 65535 || c.HTTPPort == c.Port {
		return fmt.Errorf("invalid http port:%d", c.HTTPPort)
	}

	if c.LogLevel < utils.LogErrorLevel || c.LogLevel > utils.LogDebugLevel {
		return fmt.Errorf("invalid log level:%d", c.LogLevel)
	}

	return nil
}

// codecConfig builds a relay.Config from the parsed file, falling
// back to relay.DefaultConfig's limits for any capacity left at zero.
func codecConfig(c *config) relay.Config {
	cfg := relay.DefaultConfig()
	cfg.UseOldFlags = c.UseOldFlags

	if c.SendCacheCapacity > 0 {
		cfg.SendCacheCapacity = c.SendCacheCapacity
	}
	if c.RecvCacheCapacity > 0 {
		cfg.RecvCacheCapacity = c.RecvCacheCapacity
	}
	if c.SeenBlockCapacity > 0 {
		cfg.SeenBlockCapacity = c.SeenBlockCapacity
	}
	return cfg
}
