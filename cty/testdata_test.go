package cty

import (
	"strings"
	"testing"
)

const sampleDat = `Scotland:                 14:  27:  EU:   56.82:     4.18:     0.0:  *GM:
    2M0,2M1,GM,=GB0ANT,MM,GS;
European Russia:          16:  29:  EU:   53.65:   -41.37:    -4.0:  UA:
    R,U,UA,UA2F(15)[29],=R3LO,R1FJ{AS}<80.5/-50.0>~-3.0~,
    RA3/P;
Asiatic Russia:           17:  30:  AS:   55.88:   -84.08:    -7.0:  UA9:
    UA9,UA0(19)[34],RA9;
Kaliningrad:              15:  29:  EU:   54.72:   -20.52:    -3.0:  UA2:  UA2,RA2;
Fr. Polynesia:            32:  63:  OC:  -17.65:   149.40:    10.0:  FO:
    FO/,FO;
`

const samplePlist = `<?xml version="1.0" encoding="UTF-8"?>
<plist version="1.0">
<dict>
<key>R3LO</key>
	<dict>
		<key>Country</key>
		<string>European Russia</string>
		<key>Prefix</key>
		<string>UA</string>
		<key>ADIF</key>
		<integer>54</integer>
		<key>ExactCallsign</key>
		<true/>
	</dict>
<key>UA</key>
	<dict>
		<key>Country</key>
		<string>European Russia</string>
		<key>Prefix</key>
		<string>UA</string>
		<key>ADIF</key>
		<integer>54</integer>
		<key>CQZone</key>
		<integer>16</integer>
	</dict>
<key>UA9</key>
	<dict>
		<key>Country</key>
		<string>Asiatic Russia</string>
		<key>Prefix</key>
		<string>UA9</string>
		<key>ADIF</key>
		<integer>15</integer>
		<key>CQZone</key>
		<integer>17</integer>
	</dict>
<key>GM</key>
	<dict>
		<key>Country</key>
		<string>Scotland</string>
		<key>Prefix</key>
		<string>GM</string>
		<key>ADIF</key>
		<integer>279</integer>
	</dict>
</dict>
</plist>`

func loadSampleDat(t *testing.T, opts ...Option) *Database {
	t.Helper()
	db, err := ParseDat(strings.NewReader(sampleDat), opts...)
	if err != nil {
		t.Fatalf("parse sample dat: %v", err)
	}
	return db
}

func loadSamplePlist(t *testing.T) *Database {
	t.Helper()
	db, err := ParsePlist(strings.NewReader(samplePlist))
	if err != nil {
		t.Fatalf("parse sample plist: %v", err)
	}
	return db
}
