package validation

const (
	MaxShortTextLength = 128
	MaxLongTextLength  = 5120

	// MaxStoryBytes bounds the plain story before hex encoding.
	MaxStoryBytes = 500

	DefaultRequestBodyLimit = 16 * 1024 // 16 KB

	// Short text fields:
	AddressField   = "address"
	SignatureField = "signature"
	RAField        = "ra"
	DecField       = "dec"
	MagField       = "mag"
	CenField       = "cen"
	HashField      = "hash"

	// Long text fields:
	StoryField = "story"

	ClientIPKey = "clientIP"
)

var InjectionPatterns = []string{
	"${{", "{{", "}}", "${", "#{", "{%", "%}", "{{{", // templates/SSTI
	"%0a", "%0d", "%0a%0d", "%00", "%27", "%22", "%3c", "%3e", // encoded attacks (decode first)
	"${jndi:", "ldap://", "ldaps://", // JNDI/ldap
	"eval(", "exec(", "system(", "popen(", // dangerous funcs
}
