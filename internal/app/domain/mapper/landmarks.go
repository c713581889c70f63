package mapper

import (
	"strings"

	"github.com/FACorreiaa/loci-search/internal/app/models"
)

// LandmarkEntry is one registry row: a canonical ID, known coordinates (so
// geocoding can be skipped), the region, and multilingual surface names.
type LandmarkEntry struct {
	ID         string
	Location   models.LatLng
	RegionCode string
	Names      []string
}

// landmarkEntries is the read-only in-process registry. IDs are canonical
// strings used directly in cache keys.
var landmarkEntries = []LandmarkEntry{
	{
		ID: "eiffel-tower-paris", Location: models.LatLng{Lat: 48.8584, Lng: 2.2945}, RegionCode: "FR",
		Names: []string{"eiffel tower", "tour eiffel", "מגדל אייפל", "torre eiffel", "эйфелева башня", "برج إيفل"},
	},
	{
		ID: "louvre-paris", Location: models.LatLng{Lat: 48.8606, Lng: 2.3376}, RegionCode: "FR",
		Names: []string{"louvre", "musée du louvre", "הלובר", "лувр", "متحف اللوفر"},
	},
	{
		ID: "big-ben-london", Location: models.LatLng{Lat: 51.5007, Lng: -0.1246}, RegionCode: "GB",
		Names: []string{"big ben", "ביג בן", "биг-бен", "биг бен", "بيغ بن"},
	},
	{
		ID: "colosseum-rome", Location: models.LatLng{Lat: 41.8902, Lng: 12.4922}, RegionCode: "IT",
		Names: []string{"colosseum", "colosseo", "colisée", "coliseo", "הקולוסיאום", "колизей", "الكولوسيوم"},
	},
	{
		ID: "sagrada-familia-barcelona", Location: models.LatLng{Lat: 41.4036, Lng: 2.1744}, RegionCode: "ES",
		Names: []string{"sagrada familia", "sagrada família", "סגרדה פמיליה", "саграда фамилия", "ساغرادا فاميليا"},
	},
	{
		ID: "brandenburg-gate-berlin", Location: models.LatLng{Lat: 52.5163, Lng: 13.3777}, RegionCode: "DE",
		Names: []string{"brandenburg gate", "brandenburger tor", "porte de brandebourg", "שער ברנדנבורג", "бранденбургские ворота", "بوابة براندنبورغ"},
	},
	{
		ID: "statue-of-liberty-nyc", Location: models.LatLng{Lat: 40.6892, Lng: -74.0445}, RegionCode: "US",
		Names: []string{"statue of liberty", "statue de la liberté", "פסל החירות", "статуя свободы", "تمثال الحرية"},
	},
	{
		ID: "times-square-nyc", Location: models.LatLng{Lat: 40.758, Lng: -73.9855}, RegionCode: "US",
		Names: []string{"times square", "טיימס סקוור", "таймс-сквер", "تايمز سكوير"},
	},
	{
		ID: "western-wall-jerusalem", Location: models.LatLng{Lat: 31.7767, Lng: 35.2345}, RegionCode: "IL",
		Names: []string{"western wall", "wailing wall", "הכותל", "הכותל המערבי", "mur des lamentations", "стена плача", "حائط البراق"},
	},
	{
		ID: "azrieli-center-tel-aviv", Location: models.LatLng{Lat: 32.0743, Lng: 34.7925}, RegionCode: "IL",
		Names: []string{"azrieli", "azrieli center", "עזריאלי", "מגדלי עזריאלי", "азриэли"},
	},
	{
		ID: "red-square-moscow", Location: models.LatLng{Lat: 55.7539, Lng: 37.6208}, RegionCode: "RU",
		Names: []string{"red square", "красная площадь", "הכיכר האדומה", "place rouge", "الساحة الحمراء"},
	},
}

// LandmarkRegistry resolves multilingual landmark mentions to canonical IDs
// and known coordinates. Read-only after construction.
type LandmarkRegistry struct {
	entries []LandmarkEntry
}

func NewLandmarkRegistry() *LandmarkRegistry {
	return &LandmarkRegistry{entries: landmarkEntries}
}

// Resolve finds the registry entry mentioned in text, nil when unknown.
func (r *LandmarkRegistry) Resolve(text string) *LandmarkEntry {
	needle := strings.ToLower(text)
	for i := range r.entries {
		for _, name := range r.entries[i].Names {
			if strings.Contains(needle, name) {
				return &r.entries[i]
			}
		}
	}
	return nil
}

// Lookup returns the entry for a canonical ID.
func (r *LandmarkRegistry) Lookup(id string) *LandmarkEntry {
	for i := range r.entries {
		if r.entries[i].ID == id {
			return &r.entries[i]
		}
	}
	return nil
}
