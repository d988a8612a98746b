package config

// InternalSchemes returns URL scheme prefixes that identify browser-internal
// or private pages. Targets matching these are never opened as attention
// intervals and are dropped again at the storage boundary if one slips
// through.
func InternalSchemes() []string {
	return []string{
		"chrome://",
		"chrome-extension://",
		"chrome-devtools://",
		"devtools://",
		"about:",
		"edge://",
		"brave://",
		"view-source:",
		"file://",
		"data:",
	}
}

// DefaultDenylistDomains returns a curated list of domains that should never
// be captured. These include banking, password managers, healthcare portals,
// authentication providers, and other sensitive services.
func DefaultDenylistDomains() []string {
	return []string{
		// Banking & Financial
		"chase.com",
		"bankofamerica.com",
		"wellsfargo.com",
		"citi.com",
		"usbank.com",
		"capitalone.com",
		"schwab.com",
		"fidelity.com",
		"vanguard.com",
		"paypal.com",
		"venmo.com",

		// Password Managers
		"1password.com",
		"lastpass.com",
		"bitwarden.com",
		"dashlane.com",

		// Authentication & Identity
		"accounts.google.com",
		"login.microsoftonline.com",
		"auth0.com",
		"okta.com",
		"login.gov",
		"id.me",

		// Healthcare & Medical
		"mychart.com",
		"kp.org",
		"healthcare.gov",
		"medicare.gov",

		// Government & Tax
		"irs.gov",
		"ssa.gov",
		"turbotax.intuit.com",
		"hrblock.com",

		// Crypto & Trading
		"coinbase.com",
		"binance.com",
		"kraken.com",
	}
}

// DefaultDenylistRegex returns regex rules applied to target hostnames.
func DefaultDenylistRegex() []string {
	return []string{
		`.*\.xxx$`,
		`.*pornhub\.com$`,
	}
}
