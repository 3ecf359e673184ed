package clean

import "strings"

// TickerInfo carries the company name and sector for a listed symbol.
// The sector strings double as the keyword sector map used in scoring.
type TickerInfo struct {
	Name   string
	Sector string
}

// tickerVocabulary is the static symbol list used for extraction. It is
// intentionally conservative: common English words that happen to be
// symbols (A, IT, ALL, ...) are excluded unless the match is explicit
// like "$AAPL" or "(AAPL)". Extend at runtime via AddTickers.
var tickerVocabulary = map[string]TickerInfo{
	// Mega-cap tech
	"AAPL":  {"Apple", "technology"},
	"MSFT":  {"Microsoft", "technology"},
	"GOOGL": {"Alphabet", "technology"},
	"GOOG":  {"Alphabet", "technology"},
	"AMZN":  {"Amazon", "technology"},
	"META":  {"Meta Platforms", "technology"},
	"NVDA":  {"NVIDIA", "semiconductors"},
	"TSLA":  {"Tesla", "automotive"},
	"AVGO":  {"Broadcom", "semiconductors"},
	"ORCL":  {"Oracle", "technology"},
	"CRM":   {"Salesforce", "technology"},
	"ADBE":  {"Adobe", "technology"},
	"NFLX":  {"Netflix", "media"},
	"INTC":  {"Intel", "semiconductors"},
	"AMD":   {"AMD", "semiconductors"},
	"QCOM":  {"Qualcomm", "semiconductors"},
	"TXN":   {"Texas Instruments", "semiconductors"},
	"MU":    {"Micron", "semiconductors"},
	"AMAT":  {"Applied Materials", "semiconductors"},
	"LRCX":  {"Lam Research", "semiconductors"},
	"KLAC":  {"KLA", "semiconductors"},
	"ASML":  {"ASML", "semiconductors"},
	"TSM":   {"TSMC", "semiconductors"},
	"ARM":   {"Arm Holdings", "semiconductors"},
	"SMCI":  {"Super Micro", "technology"},
	"PLTR":  {"Palantir", "technology"},
	"SNOW":  {"Snowflake", "technology"},
	"DDOG":  {"Datadog", "technology"},
	"CRWD":  {"CrowdStrike", "technology"},
	"PANW":  {"Palo Alto Networks", "technology"},
	"ZS":    {"Zscaler", "technology"},
	"NET":   {"Cloudflare", "technology"},
	"MDB":   {"MongoDB", "technology"},
	"TEAM":  {"Atlassian", "technology"},
	"SHOP":  {"Shopify", "technology"},
	"SQ":    {"Block", "fintech"},
	"PYPL":  {"PayPal", "fintech"},
	"COIN":  {"Coinbase", "fintech"},
	"HOOD":  {"Robinhood", "fintech"},
	"SOFI":  {"SoFi", "fintech"},
	"AFRM":  {"Affirm", "fintech"},
	"V":     {"Visa", "fintech"},
	"MA":    {"Mastercard", "fintech"},
	"AXP":   {"American Express", "fintech"},

	// Finance
	"JPM":  {"JPMorgan Chase", "banking"},
	"BAC":  {"Bank of America", "banking"},
	"WFC":  {"Wells Fargo", "banking"},
	"C":    {"Citigroup", "banking"},
	"GS":   {"Goldman Sachs", "banking"},
	"MS":   {"Morgan Stanley", "banking"},
	"SCHW": {"Charles Schwab", "banking"},
	"BLK":  {"BlackRock", "banking"},
	"BX":   {"Blackstone", "banking"},
	"KKR":  {"KKR", "banking"},
	"BRK":  {"Berkshire Hathaway", "banking"},

	// Healthcare
	"UNH":  {"UnitedHealth", "healthcare"},
	"JNJ":  {"Johnson & Johnson", "healthcare"},
	"LLY":  {"Eli Lilly", "pharma"},
	"PFE":  {"Pfizer", "pharma"},
	"MRK":  {"Merck", "pharma"},
	"ABBV": {"AbbVie", "pharma"},
	"BMY":  {"Bristol Myers Squibb", "pharma"},
	"AMGN": {"Amgen", "pharma"},
	"GILD": {"Gilead", "pharma"},
	"NVO":  {"Novo Nordisk", "pharma"},
	"MRNA": {"Moderna", "pharma"},
	"BNTX": {"BioNTech", "pharma"},
	"VRTX": {"Vertex", "pharma"},
	"REGN": {"Regeneron", "pharma"},
	"ISRG": {"Intuitive Surgical", "healthcare"},
	"MDT":  {"Medtronic", "healthcare"},
	"CVS":  {"CVS Health", "healthcare"},
	"HIMS": {"Hims & Hers", "healthcare"},

	// Consumer
	"WMT":  {"Walmart", "retail"},
	"COST": {"Costco", "retail"},
	"TGT":  {"Target", "retail"},
	"HD":   {"Home Depot", "retail"},
	"LOW":  {"Lowe's", "retail"},
	"NKE":  {"Nike", "consumer"},
	"LULU": {"Lululemon", "consumer"},
	"SBUX": {"Starbucks", "consumer"},
	"MCD":  {"McDonald's", "consumer"},
	"CMG":  {"Chipotle", "consumer"},
	"KO":   {"Coca-Cola", "consumer"},
	"PEP":  {"PepsiCo", "consumer"},
	"PG":   {"Procter & Gamble", "consumer"},
	"CL":   {"Colgate-Palmolive", "consumer"},
	"EL":   {"Estee Lauder", "consumer"},
	"DIS":  {"Disney", "media"},
	"WBD":  {"Warner Bros Discovery", "media"},
	"PARA": {"Paramount", "media"},
	"SPOT": {"Spotify", "media"},
	"RBLX": {"Roblox", "media"},
	"EA":   {"Electronic Arts", "media"},
	"TTWO": {"Take-Two", "media"},
	"ABNB": {"Airbnb", "travel"},
	"BKNG": {"Booking Holdings", "travel"},
	"MAR":  {"Marriott", "travel"},
	"DAL":  {"Delta Air Lines", "travel"},
	"UAL":  {"United Airlines", "travel"},
	"AAL":  {"American Airlines", "travel"},
	"LUV":  {"Southwest Airlines", "travel"},
	"RCL":  {"Royal Caribbean", "travel"},
	"CCL":  {"Carnival", "travel"},
	"UBER": {"Uber", "transport"},
	"LYFT": {"Lyft", "transport"},
	"DASH": {"DoorDash", "consumer"},

	// Automotive & industrials
	"F":    {"Ford", "automotive"},
	"GM":   {"General Motors", "automotive"},
	"RIVN": {"Rivian", "automotive"},
	"LCID": {"Lucid", "automotive"},
	"NIO":  {"NIO", "automotive"},
	"TM":   {"Toyota", "automotive"},
	"BA":   {"Boeing", "industrial"},
	"CAT":  {"Caterpillar", "industrial"},
	"DE":   {"Deere", "industrial"},
	"GE":   {"GE Aerospace", "industrial"},
	"HON":  {"Honeywell", "industrial"},
	"MMM":  {"3M", "industrial"},
	"LMT":  {"Lockheed Martin", "defense"},
	"RTX":  {"RTX", "defense"},
	"NOC":  {"Northrop Grumman", "defense"},
	"GD":   {"General Dynamics", "defense"},
	"UPS":  {"UPS", "transport"},
	"FDX":  {"FedEx", "transport"},

	// Energy & materials
	"XOM":  {"Exxon Mobil", "energy"},
	"CVX":  {"Chevron", "energy"},
	"COP":  {"ConocoPhillips", "energy"},
	"SLB":  {"Schlumberger", "energy"},
	"OXY":  {"Occidental", "energy"},
	"BP":   {"BP", "energy"},
	"ENPH": {"Enphase", "energy"},
	"FSLR": {"First Solar", "energy"},
	"NEE":  {"NextEra", "utilities"},
	"DUK":  {"Duke Energy", "utilities"},
	"SO":   {"Southern Company", "utilities"},
	"FCX":  {"Freeport-McMoRan", "materials"},
	"NEM":  {"Newmont", "materials"},
	"LIN":  {"Linde", "materials"},

	// Telecom & real estate
	"T":     {"AT&T", "telecom"},
	"VZ":    {"Verizon", "telecom"},
	"TMUS":  {"T-Mobile", "telecom"},
	"CMCSA": {"Comcast", "telecom"},
	"AMT":   {"American Tower", "realestate"},
	"PLD":   {"Prologis", "realestate"},
	"O":     {"Realty Income", "realestate"},

	// Crypto-adjacent & meme favorites
	"MSTR": {"MicroStrategy", "fintech"},
	"MARA": {"Marathon Digital", "fintech"},
	"RIOT": {"Riot Platforms", "fintech"},
	"GME":  {"GameStop", "retail"},
	"AMC":  {"AMC Entertainment", "media"},
	"BB":   {"BlackBerry", "technology"},
	"CHWY": {"Chewy", "retail"},
	"CVNA": {"Carvana", "automotive"},
	"DKNG": {"DraftKings", "media"},
	"RDDT": {"Reddit", "media"},
	"SNAP": {"Snap", "media"},
	"PINS": {"Pinterest", "media"},

	// Index ETFs, common in market coverage
	"SPY": {"S&P 500 ETF", "index"},
	"QQQ": {"Nasdaq 100 ETF", "index"},
	"DIA": {"Dow Jones ETF", "index"},
	"IWM": {"Russell 2000 ETF", "index"},
	"VTI": {"Total Market ETF", "index"},
}

// ambiguousTickers are valid symbols that collide with ordinary English
// words or common abbreviations. They only match when written in an
// explicit ticker form ($X, (X), X:) or supplied by the source.
var ambiguousTickers = map[string]bool{
	"A": true, "C": true, "F": true, "T": true, "O": true, "V": true,
	"SO": true, "BP": true, "MA": true, "MS": true, "GS": true,
	"GE": true, "HD": true, "EA": true, "EL": true, "CL": true,
	"KO": true, "BB": true, "GD": true, "DE": true, "TM": true,
	"ALL": true, "IT": true, "ARM": true, "NET": true, "SNOW": true,
}

// KnownTicker reports whether symbol is in the extraction vocabulary.
func KnownTicker(symbol string) bool {
	_, ok := tickerVocabulary[strings.ToUpper(symbol)]
	return ok
}

// Lookup returns the vocabulary entry for a symbol.
func Lookup(symbol string) (TickerInfo, bool) {
	info, ok := tickerVocabulary[strings.ToUpper(symbol)]
	return info, ok
}

// Sector returns the sector keyword for a symbol, or "" when unknown.
func Sector(symbol string) string {
	if info, ok := tickerVocabulary[strings.ToUpper(symbol)]; ok {
		return info.Sector
	}
	return ""
}

// AddTickers extends the vocabulary with user-supplied symbols, e.g. from
// the EXTRA_TICKERS environment list. Names and sectors are unknown.
func AddTickers(symbols []string) {
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" || len(s) > 5 {
			continue
		}
		if _, ok := tickerVocabulary[s]; !ok {
			tickerVocabulary[s] = TickerInfo{}
		}
	}
}
