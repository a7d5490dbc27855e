package config

// DefaultMarketplaces are substrings identifying large third-party sales platforms.
var DefaultMarketplaces = []string{
	"amazon", "ebay", "aliexpress", "alibaba", "mercadolibre",
	"leroymerlin", "leroy-merlin", "bauhaus", "bricomart",
	"mediamarkt", "media-markt", "pccomponentes", "elcorteingles",
	"carrefour", "wallapop", "milanuncios", "fnac", "worten",
	"manomano", "bricodepot", "bricor", "aki",
}

// DefaultExcludedDomains are social, video and search platforms that never become leads.
var DefaultExcludedDomains = []string{
	"youtube.com", "facebook.com", "instagram.com", "twitter.com",
	"linkedin.com", "tiktok.com", "pinterest.com", "wikipedia.org",
	"google.com", "bing.com", "yahoo.com", "scribd.com",
}

// DefaultStripPrefixes are host prefixes that carry no identity.
var DefaultStripPrefixes = []string{"www.", "shop.", "tienda.", "store.", "blog.", "m."}

// DefaultContactPaths are visited in order after the home page.
var DefaultContactPaths = []string{
	"/contacto", "/contact", "/contactenos",
	"/aviso-legal", "/legal", "/aviso_legal",
	"/politica-privacidad", "/privacy",
	"/empresa", "/about", "/about-us", "/quienes-somos", "/nosotros",
	"/informacion", "/info",
}

// DefaultEmailDenyList holds substrings of placeholder, platform and asset addresses.
var DefaultEmailDenyList = []string{
	"example@", "test@", "info@example", "noreply@", "no-reply@", "admin@admin",
	"@sentry.io", "@google", "@facebook", "@twitter", "@instagram",
	".png", ".jpg", ".gif", ".webp", "@2x.", "@3x.",
}

// DefaultEmailPriority lists preferred local-part prefixes, best first.
var DefaultEmailPriority = []string{"info@", "contacto@", "contact@", "comercial@", "ventas@", "sales@"}

// DefaultPhonePatterns covers Spain, France and Portugal plus an international fallback.
var DefaultPhonePatterns = []string{
	`(?:\+34\s?|0034\s?)?[6789]\d{2}[\s.-]?\d{2}[\s.-]?\d{2}[\s.-]?\d{2}\b`,
	`(?:\+33\s?|0033\s?)?[0-9]\d{2}[\s.-]?\d{2}[\s.-]?\d{2}[\s.-]?\d{2}\b`,
	`(?:\+351\s?|00351\s?)?[0-9]\d{2}[\s.-]?\d{3}[\s.-]?\d{3}\b`,
	`\+\d{2,3}[\s.-]?\d{2,4}[\s.-]?\d{2,4}[\s.-]?\d{2,4}[\s.-]?\d{2,4}`,
}

// DefaultTaxIDPattern matches a letter followed by 8 digits or 8 digits followed by a letter.
const DefaultTaxIDPattern = `\b[A-Z]\d{8}\b|\b\d{8}[A-Z]\b`

// DefaultStopWords are the per-language words ignored by the keyword miner.
var DefaultStopWords = map[string][]string{
	"es": {
		"de", "la", "el", "en", "y", "a", "los", "las", "del", "con", "para",
		"un", "una", "por", "que", "se", "su", "al", "es", "lo", "como",
		"más", "o", "pero", "sus", "le", "ya", "este", "ha", "me", "si",
		"porque", "esta", "son", "entre", "cuando", "muy", "sin", "sobre",
		"también", "ser", "hay", "puede", "todos", "así", "nos", "ni",
	},
	"fr": {
		"de", "la", "le", "et", "en", "un", "une", "du", "des", "les", "est",
		"dans", "que", "pour", "au", "sur", "par", "pas", "plus", "avec",
	},
	"en": {
		"the", "a", "an", "and", "or", "but", "in", "on", "at", "to", "for",
		"of", "with", "by", "from", "as", "is", "was", "are", "were", "been",
	},
}
