package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

type Node struct {
	URL       string            `yaml:"url" validate:"required,url"`
	Name      string            `yaml:"name"`
	ApiKey    string            `yaml:"api_key"`
	ApiKeyEnv string            `yaml:"api_key_env"`
	Headers   map[string]string `yaml:"headers,omitempty"`
	Query     map[string]string `yaml:"query,omitempty"`
}

type ProviderCfg struct {
	Name      string `yaml:"name" validate:"required"`
	URL       string `yaml:"url" validate:"required,url"`
	ApiKey    string `yaml:"api_key"`
	ApiKeyEnv string `yaml:"api_key_env"`
}

// FinalizeNodes: fill api keys, env substitution, attach query params
func (c *Config) FinalizeNodes() error {
	nodes := make([]Node, len(c.Endpoints.Static))
	for i, n := range c.Endpoints.Static {
		if n.Headers == nil {
			n.Headers = map[string]string{}
		}
		if n.Query == nil {
			n.Query = map[string]string{}
		}

		// fill API key
		key := n.ApiKey
		if key == "" && n.ApiKeyEnv != "" {
			key = os.Getenv(n.ApiKeyEnv)
		}

		// substitute ${VAR} in URL / headers / query
		n.URL = substituteKey(n.URL, key)
		n.URL = substituteEnvVars(n.URL)
		for k, v := range n.Headers {
			n.Headers[k] = substituteEnvVars(v)
		}
		for k, v := range n.Query {
			n.Query[k] = substituteEnvVars(v)
		}
		n.ApiKey = key

		// attach query into URL
		if len(n.Query) > 0 {
			u, err := url.Parse(n.URL)
			if err != nil {
				return fmt.Errorf("invalid endpoint url: %q", n.URL)
			}
			q := u.Query()
			for k, v := range n.Query {
				q.Set(k, v)
			}
			u.RawQuery = q.Encode()
			n.URL = u.String()
		}

		nodes[i] = n
	}
	c.Endpoints.Static = nodes

	for i, p := range c.Providers {
		key := p.ApiKey
		if key == "" && p.ApiKeyEnv != "" {
			key = os.Getenv(p.ApiKeyEnv)
		}
		p.URL = substituteKey(p.URL, key)
		p.URL = substituteEnvVars(p.URL)
		p.ApiKey = key
		c.Providers[i] = p
	}
	return nil
}

// helpers
func substituteKey(s, key string) string {
	if s == "" || key == "" {
		return s
	}
	return strings.ReplaceAll(s, "${API_KEY}", key)
}

func substituteEnvVars(s string) string {
	if s == "" {
		return s
	}
	for {
		start := strings.Index(s, "${")
		if start == -1 {
			break
		}
		end := strings.Index(s[start:], "}")
		if end == -1 {
			break
		}
		end += start
		varName := s[start+2 : end]
		envValue := os.Getenv(varName)
		s = strings.ReplaceAll(s, "${"+varName+"}", envValue)
	}
	return s
}
