package component

// Component represents a physical or virtual grid element in the microgrid.
// This matches the database schema in migrations/20260501_000000_initial_schema.up.sql.
//
// Components are immutable for the lifetime of a process run: they are
// provisioned externally, loaded at startup, and replaced only by a full
// registry reload.
type Component struct {
	// Identity
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`

	// Classification
	Category Category `json:"category"`

	// Subtype is meaningful only for categories that define one
	// (currently inverters). SubtypeUnspecified otherwise.
	Subtype Subtype `json:"subtype,omitempty"`

	// Metadata
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`
	Serial       string `json:"serial,omitempty"`

	// Driver routing
	Driver  string `json:"driver,omitempty"`
	Address string `json:"address,omitempty"`
}

// Connection is a directed edge between two component IDs, oriented away
// from the grid endpoint per the passive sign convention. Both endpoints
// must reference components known to the registry; this is validated at
// graph construction, not at query time.
type Connection struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Category classifies a component's electrical role. Closed enum.
type Category string

// Category constants.
const (
	CategoryUnspecified  Category = "unspecified"
	CategoryGridEndpoint Category = "grid-endpoint"
	CategoryMeter        Category = "meter"
	CategoryInverter     Category = "inverter"
	CategoryConverter    Category = "converter"
	CategoryBattery      Category = "battery"
	CategoryEVCharger    Category = "ev-charger"
	CategorySensor       Category = "sensor"
	CategoryCryptoMiner  Category = "crypto-miner"
	CategoryElectrolyzer Category = "electrolyzer"
	CategoryCHP          Category = "chp"
)

// AllCategories returns all valid category values.
func AllCategories() []Category {
	return []Category{
		CategoryUnspecified, CategoryGridEndpoint, CategoryMeter,
		CategoryInverter, CategoryConverter, CategoryBattery,
		CategoryEVCharger, CategorySensor, CategoryCryptoMiner,
		CategoryElectrolyzer, CategoryCHP,
	}
}

// IsValid reports whether c is a recognised category.
func (c Category) IsValid() bool {
	for _, valid := range AllCategories() {
		if c == valid {
			return true
		}
	}
	return false
}

// Subtype refines a category for categories that define one.
type Subtype string

// Inverter subtypes.
const (
	SubtypeUnspecified     Subtype = ""
	SubtypeBatteryInverter Subtype = "battery"
	SubtypeSolarInverter   Subtype = "solar"
	SubtypeHybridInverter  Subtype = "hybrid"
)
