// Package validation содержит проверку формата DM-кодов.
package validation

// Код без криптохвоста: идентификатор применения "01", GTIN из 14 цифр,
// идентификатор "21" и серийный номер.
const (
	gtinAI       = "01"
	serialAI     = "21"
	gtinLen      = 14
	maxSerialLen = 20
)

// IsValidCode проверяет структуру DM-кода и контрольную цифру GTIN.
func IsValidCode(code string) bool {
	if len(code) < len(gtinAI)+gtinLen+len(serialAI)+1 {
		return false
	}
	if code[:len(gtinAI)] != gtinAI {
		return false
	}

	gtin := code[len(gtinAI) : len(gtinAI)+gtinLen]
	rest := code[len(gtinAI)+gtinLen:]
	if rest[:len(serialAI)] != serialAI {
		return false
	}

	serial := rest[len(serialAI):]
	if len(serial) == 0 || len(serial) > maxSerialLen {
		return false
	}

	for _, r := range gtin {
		if r < '0' || r > '9' {
			return false
		}
	}

	return gtinCheckDigitValid(gtin)
}

// gtinCheckDigitValid проверяет контрольную цифру GTIN-14:
// веса 3 и 1 чередуются начиная с первой позиции, сумма дополняется до
// ближайшего кратного десяти.
func gtinCheckDigitValid(gtin string) bool {
	sum := 0
	for i := 0; i < len(gtin)-1; i++ {
		d := int(gtin[i] - '0')
		if i%2 == 0 {
			d *= 3
		}
		sum += d
	}

	check := (10 - sum%10) % 10
	return int(gtin[len(gtin)-1]-'0') == check
}
