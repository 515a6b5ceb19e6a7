package threat

// Category is one row of the classification table.
type Category struct {
	// Name is the label reported for documents classified into this category.
	Name string
	// Keywords are matched against the effective keyword set.
	Keywords []string
	// Weight multiplies the number of matched keywords.
	Weight float64
	// Boost is the severity escalation associated with the category.
	// It is recorded in the evidence but does not feed the numeric score.
	Boost int
}

// Category names referenced by the classifier.
const (
	CategoryMarketplace   = "Illegal Marketplace"
	CategoryFinancial     = "Financial/Crypto"
	CategoryHacking       = "Hacking/Exploitation"
	CategoryDataLeak      = "Data Leak"
	CategoryFraud         = "Fraud"
	CategoryCommunication = "Communication/Forum"
	CategoryDocument      = "Document/Info"
	CategoryAdult         = "Adult Content"

	// MarketplaceOverride replaces the selected label when both "escrow"
	// and "carding" are present.
	MarketplaceOverride = "Marketplace"
)

// Categories is the classification table in tie-break order.
var Categories = []Category{
	{
		Name: CategoryMarketplace,
		Keywords: []string{
			"shop", "store", "buy", "sell", "vendor", "market", "product",
			"drugs", "weapon", "exploit", "stolen", "illegal", "contraband",
			"escrow", "carding", "cvv",
		},
		Weight: 3.7,
		Boost:  35,
	},
	{
		Name: CategoryFinancial,
		Keywords: []string{
			"bitcoin", "crypto", "wallet", "payment", "transaction", "money",
			"ethereum", "monero", "zcash", "blockchain", "exchange",
			"mining", "coin",
		},
		Weight: 1.6,
		Boost:  25,
	},
	{
		Name: CategoryHacking,
		Keywords: []string{
			"hack", "exploit", "vulnerability", "malware", "ransomware",
			"ddos", "botnet", "zero-day", "payload", "breach", "intrusion",
			"worm", "trojan", "keylogger", "remote access", "database",
			"carding", "dump", "cvv",
		},
		Weight: 3.8,
		Boost:  40,
	},
	{
		Name: CategoryDataLeak,
		Keywords: []string{
			"leak", "leaked", "database", "dump", "credentials", "password",
			"breach", "exposed", "confidential", "classified", "documents",
			"personal data", "records", "user data",
		},
		Weight: 3.4,
		Boost:  38,
	},
	{
		Name: CategoryFraud,
		Keywords: []string{
			"fraud", "scam", "phishing", "forgery", "fake", "counterfeit",
			"money laundering", "ponzi", "scheme", "clone", "impersonate",
			"spoof", "identity theft",
		},
		Weight: 2.5,
		Boost:  30,
	},
	{
		Name: CategoryCommunication,
		Keywords: []string{
			"forum", "chat", "message", "contact", "email", "discuss",
			"community", "board", "thread", "post", "group", "channel",
		},
		Weight: 1.0,
		Boost:  5,
	},
	{
		Name: CategoryDocument,
		Keywords: []string{
			"document", "guide", "manual", "tutorial", "information",
			"research", "whitepaper", "pdf", "archive", "collection",
			"library", "reference",
		},
		Weight: 1.2,
		Boost:  3,
	},
	{
		Name: CategoryAdult,
		Keywords: []string{
			"adult", "explicit", "nsfw", "sex", "porn", "xxx", "18+",
			"escort", "prostitution", "dating", "cam",
		},
		Weight: 1.5,
		Boost:  8,
	},
}

// SuspiciousTerms each add ScoreSuspiciousTerm to the threat score once.
var SuspiciousTerms = []string{
	"ransomware", "dump", "carding", "escrow", "exploit", "malware",
	"hack", "drugs", "weapon", "leak", "fraud", "stolen", "illegal",
}

// Score weights.
const (
	ScoreCrypto         = 30
	ScoreEmail          = 20
	ScoreSuspiciousTerm = 10
	MaxScore            = 100
)

// Classifier fallbacks.
const (
	// cryptoOnlyWeightedScore is the pseudo-match used when only crypto
	// addresses were found.
	cryptoOnlyWeightedScore = 2.0
	// cryptoOnlyKeyword is reported as the matched keyword of that pseudo-match.
	cryptoOnlyKeyword = "crypto_detected"
	// defaultWeightedScore is reported when nothing matched at all.
	defaultWeightedScore = 0.5
	// maxConfidence caps the classifier confidence.
	maxConfidence = 0.99
	// maxEvidenceKeywords bounds the matched keywords kept as evidence.
	maxEvidenceKeywords = 5
)

// categoryByName returns the table row named name.
func categoryByName(name string) (Category, bool) {
	for _, c := range Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}
