package config

import "maps"

// SiteConfig holds request overrides for a single host.
// This allows scanning services that require a login session.
type SiteConfig struct {
	// Cookie is sent as the Cookie header.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// Site returns the configuration for host, merged over SiteDefaults.
func (c *Config) Site(host string) SiteConfig {
	result := SiteConfig{
		Cookie:  c.SiteDefaults.Cookie,
		Headers: maps.Clone(c.SiteDefaults.Headers),
	}

	site, ok := c.Sites[host]
	if !ok {
		return result
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	return result
}

// SiteHeaders returns the extra request headers for host, with the cookie
// folded in. It returns nil when nothing is configured.
func (c *Config) SiteHeaders(host string) map[string]string {
	site := c.Site(host)
	if site.Cookie == "" && len(site.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(site.Headers)+1)
	maps.Copy(headers, site.Headers)
	if site.Cookie != "" {
		headers["Cookie"] = site.Cookie
	}
	return headers
}
