package enum

type EmailDirection string

const (
	EmailInbound  EmailDirection = "inbound"
	EmailOutbound EmailDirection = "outbound"
)

func (t EmailDirection) String() string {
	return string(t)
}

type EmailSensitivity string

const (
	SensitivityNormal          EmailSensitivity = "normal"
	SensitivitySensitive       EmailSensitivity = "sensitive"
	SensitivityHighlySensitive EmailSensitivity = "highly_sensitive"
)

func (t EmailSensitivity) String() string {
	return string(t)
}
