package region

// districts maps a call-area digit and the letter that follows it to a
// two-letter oblast code. Letters not listed have no region.
var districts = map[byte]map[byte]string{
	'1': expand(map[string]string{
		"ABFGJLM": "SP",
		"CD":      "LO",
		"N":       "KL",
		"O":       "AR",
		"P":       "NO",
		"QS":      "VO",
		"T":       "NV",
		"W":       "PS",
		"Z":       "MU",
	}),
	'2': expand(map[string]string{
		"FK": "KA",
	}),
	'3': expand(map[string]string{
		"ABC": "MA",
		"DFH": "MO",
		"E":   "OR",
		"G":   "LP",
		"I":   "TV",
		"L":   "SM",
		"M":   "YR",
		"N":   "KS",
		"P":   "TL",
		"Q":   "VR",
		"R":   "TB",
		"S":   "RA",
		"T":   "NN",
		"U":   "IV",
		"V":   "VL",
		"W":   "KU",
		"X":   "KG",
		"Y":   "BR",
		"Z":   "BO",
	}),
	'4': expand(map[string]string{
		"AB":  "VG",
		"CD":  "SA",
		"F":   "PE",
		"HI":  "SR",
		"LM":  "UL",
		"NO":  "KI",
		"PQR": "TA",
		"ST":  "MR",
		"U":   "MD",
		"W":   "UD",
		"YZ":  "CU",
	}),
	'6': expand(map[string]string{
		"ABCD": "KR",
		"E":    "KC",
		"FGHT": "ST",
		"I":    "KM",
		"J":    "SO",
		"LMN":  "RO",
		"P":    "CN",
		"Q":    "IN",
		"UV":   "AO",
		"W":    "DA",
		"X":    "KB",
		"Y":    "AD",
	}),
	'9': expand(map[string]string{
		"AB":  "CB",
		"CDE": "SV",
		"FG":  "PM",
		"HI":  "TO",
		"J":   "HM",
		"K":   "YN",
		"L":   "TN",
		"MN":  "OM",
		"OP":  "NS",
		"QR":  "KN",
		"ST":  "OB",
		"UV":  "KE",
		"W":   "BA",
		"X":   "KO",
		"Y":   "AL",
		"Z":   "GA",
	}),
	'0': expand(map[string]string{
		"ABH": "KK",
		"C":   "HK",
		"D":   "EA",
		"EF":  "SL",
		"I":   "MG",
		"J":   "AM",
		"K":   "CK",
		"LMN": "PK",
		"O":   "BU",
		"Q":   "YA",
		"RST": "IR",
		"UV":  "CT",
		"W":   "HA",
		"XZ":  "KT",
		"Y":   "TU",
	}),
}

func expand(groups map[string]string) map[byte]string {
	out := make(map[byte]string)
	for letters, code := range groups {
		for i := 0; i < len(letters); i++ {
			out[letters[i]] = code
		}
	}
	return out
}

// Lookup returns the region for a call-area digit and suffix letter.
func Lookup(digit, letter byte) (string, bool) {
	sub, ok := districts[digit]
	if !ok {
		return "", false
	}
	code, ok := sub[letter]
	return code, ok
}
