package feature

// Known category values, in fitted order. They drive the HTML form; the
// preprocessor artifact remains the authority on what it accepts.
var (
	Genders         = []string{"female", "male"}
	RaceEthnicities = []string{"group A", "group B", "group C", "group D", "group E"}
	Educations      = []string{
		"associate's degree",
		"bachelor's degree",
		"high school",
		"master's degree",
		"some college",
		"some high school",
	}
	Lunches   = []string{"free/reduced", "standard"}
	TestPreps = []string{"completed", "none"}
)

var categories = map[string][]string{
	Gender:                   Genders,
	RaceEthnicity:            RaceEthnicities,
	ParentalLevelOfEducation: Educations,
	Lunch:                    Lunches,
	TestPreparationCourse:    TestPreps,
}

// Categories returns a copy of the known values of a categorical column, or
// nil for numeric and unknown columns.
func Categories(column string) []string {
	c, ok := categories[column]
	if !ok {
		return nil
	}
	return append([]string(nil), c...)
}
