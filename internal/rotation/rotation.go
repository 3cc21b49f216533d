// Package rotation schedules which (niche, city) pair the external discovery
// bot should search next. It only seeds new lead rows and never touches the
// outreach lifecycle.
package rotation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// MinLeadsPerCity is the yield below which a city is considered exhausted
// and the cursor advances to the next one.
const MinLeadsPerCity = 5

// DefaultCities is ordered by priority; the cursor wraps.
var DefaultCities = []string{
	"Seattle WA", "Portland OR", "Spokane WA", "Tacoma WA", "Vancouver WA",
	"Bellevue WA", "Everett WA", "Olympia WA", "Boise ID",
	"Los Angeles CA", "San Diego CA", "San Francisco CA", "San Jose CA",
	"Sacramento CA", "Fresno CA", "Oakland CA", "Long Beach CA",
	"Phoenix AZ", "Tucson AZ", "Las Vegas NV", "Albuquerque NM",
	"Denver CO", "Colorado Springs CO", "Aurora CO",
	"Austin TX", "Dallas TX", "Houston TX", "San Antonio TX",
	"Fort Worth TX", "El Paso TX", "Arlington TX", "Plano TX",
	"Chicago IL", "Detroit MI", "Indianapolis IN", "Columbus OH",
	"Milwaukee WI", "Kansas City MO", "Omaha NE", "Minneapolis MN",
	"Atlanta GA", "Charlotte NC", "Miami FL", "Tampa FL",
	"Orlando FL", "Jacksonville FL", "Nashville TN", "Memphis TN",
	"New York NY", "Philadelphia PA", "Boston MA", "Baltimore MD",
	"Washington DC", "Pittsburgh PA", "Buffalo NY", "Newark NJ",
}

// DefaultNiches rotate daily within the current city.
var DefaultNiches = []string{
	"Landscapers", "Roofing Companies", "HVAC Companies", "Plumbers",
	"Electricians", "Painters", "Carpet Cleaning", "Pool Services",
	"Pest Control", "Tree Services", "Garage Door Repair", "Handyman Services",
	"Window Cleaning", "Pressure Washing", "Fence Companies",
	"Concrete Contractors", "Flooring Companies", "Kitchen Remodeling",
	"Bathroom Remodeling", "Moving Companies", "Junk Removal", "Locksmiths",
	"Auto Repair Shops", "Restaurants", "Hair Salons", "Dental Clinics",
	"Chiropractors", "Physical Therapy", "Veterinarians", "Real Estate Agents",
}

// State is the persisted rotation cursor.
type State struct {
	CurrentCityIndex  int    `json:"current_city_index"`
	CurrentNicheIndex int    `json:"current_niche_index"`
	LastRunDate       string `json:"last_run_date"` // YYYY-MM-DD, empty before first run
	LeadsFoundInCity  int    `json:"leads_found_in_city"`
	TotalLeadsFound   int    `json:"total_leads_found"`
}

// Planner owns the rotation state plus the target catalogs.
type Planner struct {
	Path   string
	Cities []string
	Niches []string
	State  State
}

// Load reads the state file, starting from the zero cursor when it does not
// exist or cannot be parsed.
func Load(path string, cities, niches []string) *Planner {
	p := &Planner{Path: path, Cities: cities, Niches: niches}
	if len(p.Cities) == 0 {
		p.Cities = DefaultCities
	}
	if len(p.Niches) == 0 {
		p.Niches = DefaultNiches
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return p
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return p
	}
	if st.CurrentCityIndex < 0 || st.CurrentCityIndex >= len(p.Cities) {
		st.CurrentCityIndex = 0
	}
	if st.CurrentNicheIndex < 0 || st.CurrentNicheIndex >= len(p.Niches) {
		st.CurrentNicheIndex = 0
	}
	p.State = st
	return p
}

// Save persists the cursor.
func (p *Planner) Save() error {
	data, err := json.MarshalIndent(p.State, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize rotation state: %w", err)
	}
	if err := os.WriteFile(p.Path, data, 0644); err != nil {
		return fmt.Errorf("failed to save rotation state: %w", err)
	}
	return nil
}

// Current returns the (niche, city) pair the discovery bot should search.
func (p *Planner) Current() (niche, city string) {
	return p.Niches[p.State.CurrentNicheIndex], p.Cities[p.State.CurrentCityIndex]
}

// Query renders the search query for the current pair.
func (p *Planner) Query() string {
	niche, city := p.Current()
	return fmt.Sprintf("%s in %s", niche, city)
}

// ShouldRotate reports whether a new calendar day has started since the last
// recorded run. The first ever run does not rotate.
func (p *Planner) ShouldRotate(today time.Time) bool {
	if p.State.LastRunDate == "" {
		return false
	}
	return p.State.LastRunDate != today.Format("2006-01-02")
}

// RotateNiche advances the niche cursor by one, wrapping.
func (p *Planner) RotateNiche() {
	p.State.CurrentNicheIndex = (p.State.CurrentNicheIndex + 1) % len(p.Niches)
}

// MarkRunComplete records a finished discovery run and its yield. When the
// city's cumulative yield stays under MinLeadsPerCity the city cursor
// advances and the niche cursor resets.
func (p *Planner) MarkRunComplete(today time.Time, leadsFound int) {
	p.State.LastRunDate = today.Format("2006-01-02")
	p.State.TotalLeadsFound += leadsFound
	p.State.LeadsFoundInCity += leadsFound

	if p.State.LeadsFoundInCity < MinLeadsPerCity {
		p.State.CurrentCityIndex = (p.State.CurrentCityIndex + 1) % len(p.Cities)
		p.State.CurrentNicheIndex = 0
		p.State.LeadsFoundInCity = 0
	}
}

// Summary is the human-readable rotation status block.
func (p *Planner) Summary() string {
	niche, city := p.Current()
	var b strings.Builder
	fmt.Fprintf(&b, "Current Rotation Status:\n")
	fmt.Fprintf(&b, "  City:  %s (#%d/%d)\n", city, p.State.CurrentCityIndex+1, len(p.Cities))
	fmt.Fprintf(&b, "  Niche: %s (#%d/%d)\n", niche, p.State.CurrentNicheIndex+1, len(p.Niches))
	fmt.Fprintf(&b, "  Leads in this city: %d\n", p.State.LeadsFoundInCity)
	fmt.Fprintf(&b, "  Total leads found:  %d\n", p.State.TotalLeadsFound)
	fmt.Fprintf(&b, "  Current query: %q", p.Query())
	return b.String()
}

// NicheFromQuery extracts the niche from a search query like
// "Landscapers in Austin TX".
func NicheFromQuery(query string) string {
	if i := strings.Index(query, " in "); i > 0 {
		return strings.TrimSpace(query[:i])
	}
	return "local businesses"
}

// CityFromQuery extracts the city from a search query.
func CityFromQuery(query string) string {
	if i := strings.Index(query, " in "); i >= 0 {
		rest := strings.Fields(strings.TrimSpace(query[i+4:]))
		if len(rest) > 0 {
			return rest[0]
		}
	}
	return "your area"
}
