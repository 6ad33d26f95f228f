package directory

// State is one row of the Census state code table.
type State struct {
	Code string
	Name string
	Abbr string
}

// The two-digit state code is positions 1-2 of every entity ID. It is not
// the same as the "State code" column of the directory file, which also
// numbers territories.
var states = []State{
	{"00", "United States", "US"},
	{"01", "Alabama", "AL"},
	{"02", "Alaska", "AK"},
	{"03", "Arizona", "AZ"},
	{"04", "Arkansas", "AR"},
	{"05", "California", "CA"},
	{"06", "Colorado", "CO"},
	{"07", "Connecticut", "CT"},
	{"08", "Delaware", "DE"},
	{"09", "District of Columbia", "DC"},
	{"10", "Florida", "FL"},
	{"11", "Georgia", "GA"},
	{"12", "Hawaii", "HI"},
	{"13", "Idaho", "ID"},
	{"14", "Illinois", "IL"},
	{"15", "Indiana", "IN"},
	{"16", "Iowa", "IA"},
	{"17", "Kansas", "KS"},
	{"18", "Kentucky", "KY"},
	{"19", "Louisiana", "LA"},
	{"20", "Maine", "ME"},
	{"21", "Maryland", "MD"},
	{"22", "Massachusetts", "MA"},
	{"23", "Michigan", "MI"},
	{"24", "Minnesota", "MN"},
	{"25", "Mississippi", "MS"},
	{"26", "Missouri", "MO"},
	{"27", "Montana", "MT"},
	{"28", "Nebraska", "NE"},
	{"29", "Nevada", "NV"},
	{"30", "New Hampshire", "NH"},
	{"31", "New Jersey", "NJ"},
	{"32", "New Mexico", "NM"},
	{"33", "New York", "NY"},
	{"34", "North Carolina", "NC"},
	{"35", "North Dakota", "ND"},
	{"36", "Ohio", "OH"},
	{"37", "Oklahoma", "OK"},
	{"38", "Oregon", "OR"},
	{"39", "Pennsylvania", "PA"},
	{"40", "Rhode Island", "RI"},
	{"41", "South Carolina", "SC"},
	{"42", "South Dakota", "SD"},
	{"43", "Tennessee", "TN"},
	{"44", "Texas", "TX"},
	{"45", "Utah", "UT"},
	{"46", "Vermont", "VT"},
	{"47", "Virginia", "VA"},
	{"48", "Washington", "WA"},
	{"49", "West Virginia", "WV"},
	{"50", "Wisconsin", "WI"},
	{"51", "Wyoming", "WY"},
}

var (
	stateByCode = make(map[string]State, len(states))
	stateByName = make(map[string]State, len(states))
	stateByAbbr = make(map[string]State, len(states))
)

func init() {
	for _, s := range states {
		stateByCode[s.Code] = s
		stateByName[s.Name] = s
		stateByAbbr[s.Abbr] = s
	}
}

// StateByCode looks up a two-digit state code.
func StateByCode(code string) (State, bool) {
	s, ok := stateByCode[code]
	return s, ok
}

// StateByName looks up a full state name, e.g. "District of Columbia".
func StateByName(name string) (State, bool) {
	s, ok := stateByName[name]
	return s, ok
}

// StateByAbbr looks up a postal abbreviation.
func StateByAbbr(abbr string) (State, bool) {
	s, ok := stateByAbbr[abbr]
	return s, ok
}

// StatesOnly returns the 50 states and DC, without the national row.
func StatesOnly() []State {
	return append([]State(nil), states[1:]...)
}

// Function codes for special districts.
var specialDistricts = map[string]string{
	"01": "Air transportation (airports)",
	"02": "Cemeteries",
	"03": "Miscellaneous commercial activities",
	"04": "Correctional institutions",
	"05": "Other corrections",
	"09": "Education (school building authorities)",
	"24": "Fire protection",
	"32": "Health",
	"40": "Hospitals",
	"41": "Industrial development",
	"42": "Mortgage credit",
	"44": "Regular highways",
	"45": "Toll highways",
	"50": "Housing and community development",
	"51": "Drainage",
	"52": "Libraries",
	"59": "Other natural resources",
	"60": "Parking facilities",
	"61": "Parks and recreation",
	"62": "Police protection",
	"63": "Flood control",
	"64": "Irrigation",
	"77": "Public welfare institutions",
	"79": "Other public welfare",
	"80": "Sewerage",
	"81": "Solid waste management",
	"86": "Reclamation",
	"87": "Sea and inland port facilities",
	"88": "Soil and water conservation",
	"89": "Other single-function districts",
	"91": "Water supply utility",
	"92": "Electric power utility",
	"93": "Gas supply utility",
	"94": "Mass transit system utility",
	"96": "Fire protection and water supply - combination of services",
	"97": "Natural resources and water supply - combination of services",
	"98": "Sewerage and water supply - combination of services",
	"99": "Other multifunction districts",
}

// SpecialDistrictType returns the function name for a special-district code,
// or "" when the code is blank or unknown.
func SpecialDistrictType(code string) string {
	return specialDistricts[code]
}
