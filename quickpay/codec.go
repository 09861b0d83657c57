package quickpay

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// ProtocolVersion is the QuickPay form-protocol version this bridge speaks.
const ProtocolVersion = "3"

// CustomFieldPrefix marks merchant passthrough fields. The gateway returns
// them unmodified in the notification.
const CustomFieldPrefix = "CUSTOM_"

// checkoutSignOrder is the canonical field order for signing outbound
// checkout requests. Fixed by the protocol, do not reorder.
var checkoutSignOrder = []string{
	"protocol",
	"msgtype",
	"merchant",
	"language",
	"ordernumber",
	"amount",
	"currency",
	"continueurl",
	"cancelurl",
	"callbackurl",
	"autocapture",
	"cardtypelock",
	"description",
	"ipaddress",
	"testmode",
}

// notificationSignOrder is the canonical field order for verifying inbound
// notifications. Distinct from the checkout order, also fixed.
var notificationSignOrder = []string{
	"msgtype",
	"ordernumber",
	"amount",
	"currency",
	"time",
	"state",
	"qpstat",
	"qpstatmsg",
	"chstat",
	"chstatmsg",
	"merchant",
	"merchantemail",
	"transaction",
	"cardtype",
	"cardnumber",
}

// signatureString concatenates field values in the given canonical order.
// Fields absent from the set are skipped, not zero-filled.
func signatureString(fields map[string]string, order []string) string {
	var sb strings.Builder
	for _, name := range order {
		if value, ok := fields[name]; ok {
			sb.WriteString(value)
		}
	}
	return sb.String()
}

// Sign computes the md5check digest for an outbound checkout field set.
// The digest is md5(canonical-string + secret), hex encoded. MD5 is what
// the gateway's fixed protocol requires; it cannot be upgraded unilaterally.
func Sign(fields map[string]string, secret string) string {
	sum := md5.Sum([]byte(signatureString(fields, checkoutSignOrder) + secret))
	return hex.EncodeToString(sum[:])
}

// signNotification computes the expected md5check digest for an inbound
// notification field set.
func signNotification(fields map[string]string, secret string) string {
	sum := md5.Sum([]byte(signatureString(fields, notificationSignOrder) + secret))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks an inbound notification against its md5check
// field. This is the only authentication the protocol offers, so a
// mismatch must be treated as a forgery attempt, never ignored.
func VerifySignature(fields map[string]string, secret string) bool {
	received, ok := fields["md5check"]
	if !ok || received == "" {
		return false
	}
	expected := signNotification(fields, secret)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
}

// fieldPatterns holds the per-field syntax rules of the protocol.
var fieldPatterns = map[string]*regexp.Regexp{
	"protocol":       regexp.MustCompile(`^3$`),
	"msgtype":        regexp.MustCompile(`^(authorize|subscribe)$`),
	"merchant":       regexp.MustCompile(`^[0-9]{8}$`),
	"language":       regexp.MustCompile(`^[a-z]{2}$`),
	"ordernumber":    regexp.MustCompile(`^[a-zA-Z0-9]{4,20}$`),
	"amount":         regexp.MustCompile(`^[0-9]{1,9}$`),
	"continueurl":    regexp.MustCompile(`^https?://`),
	"cancelurl":      regexp.MustCompile(`^https?://`),
	"callbackurl":    regexp.MustCompile(`^https?://`),
	"currency":       regexp.MustCompile(`^[A-Z]{3}$`),
	"autocapture":    regexp.MustCompile(`^(0|1)$`),
	"testmode":       regexp.MustCompile(`^(0|1)$`),
	"cardnumber":     regexp.MustCompile(`^[0-9]{13,19}$`),
	"expirationdate": regexp.MustCompile(`^[0-9]{4}$`),
	"cvd":            regexp.MustCompile(`^[0-9]{0,4}$`),
	"cardtypelock":   regexp.MustCompile(`^[a-zA-Z,]{0,128}$`),
	"transaction":    regexp.MustCompile(`^[0-9]{1,32}$`),
	"description":    regexp.MustCompile(`^[\w _\-.]{0,20}$`),
	"md5check":       regexp.MustCompile(`^[a-z0-9]{32}$`),
}

// customFieldPattern is the syntax rule for CUSTOM_ passthrough values.
var customFieldPattern = regexp.MustCompile(`^[\w _\-.]{0,255}$`)

// ValidateFields checks every field in an outbound set against its syntax
// rule. Field names must either be known protocol fields or carry the
// CUSTOM_ prefix; anything else invalidates the whole set. Returns nil
// when the set is well formed.
func ValidateFields(fields map[string]string) error {
	for name, value := range fields {
		if pattern, ok := fieldPatterns[name]; ok {
			if !pattern.MatchString(value) {
				return fmt.Errorf("field %q value %q violates syntax rule", name, value)
			}
			continue
		}
		if strings.HasPrefix(name, CustomFieldPrefix) {
			if !customFieldPattern.MatchString(value) {
				return fmt.Errorf("custom field %q value violates syntax rule", name)
			}
			continue
		}
		return fmt.Errorf("unknown field %q", name)
	}
	return nil
}

// ExtractCustomFields pulls CUSTOM_ passthrough fields out of a
// notification and strips the prefix.
func ExtractCustomFields(fields map[string]string) map[string]string {
	custom := make(map[string]string)
	for name, value := range fields {
		if strings.HasPrefix(name, CustomFieldPrefix) {
			custom[strings.TrimPrefix(name, CustomFieldPrefix)] = value
		}
	}
	return custom
}

// Result classifies the gateway's qpstat result code.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
	ResultError   Result = "error"
	ResultUnknown Result = "unknown"
)

// ResultFromStatus maps a qpstat code to a Result. An empty code means the
// gateway sent no usable status and is treated as an internal error.
func ResultFromStatus(code string) Result {
	if code == "" {
		return ResultError
	}
	switch code {
	case "000": // accepted
		return ResultSuccess
	case "001", "003", "008": // rejected, expired, bad parameters
		return ResultFailed
	case "002", "004", "005", "006", "007": // communication and acquirer errors
		return ResultError
	default:
		return ResultUnknown
	}
}
