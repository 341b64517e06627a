// model.go defines the reference tables persisted in SQL
package datastore

// StateSoil holds the soil nutrient profile of one state.
type StateSoil struct {
	State string  `gorm:"primaryKey;column:state;type:varchar(64)"`
	N     float64 `gorm:"column:n"`
	P     float64 `gorm:"column:p"`
	K     float64 `gorm:"column:k"`
	PH    float64 `gorm:"column:ph"`
}

// TableName keeps the table name aligned with the CSV file it is imported from.
func (StateSoil) TableName() string { return "state_soil_data" }

// StateWeather holds one year of weather for a state. Year 0 means a
// multi-year average row.
type StateWeather struct {
	ID                 uint    `gorm:"primaryKey"`
	State              string  `gorm:"index:idx_weather_state_year,unique;type:varchar(64)"`
	Year               int     `gorm:"index:idx_weather_state_year,unique"`
	AvgTempC           float64 `gorm:"column:avg_temp_c"`
	TotalRainfallMM    float64 `gorm:"column:total_rainfall_mm"`
	AvgHumidityPercent float64 `gorm:"column:avg_humidity_percent"`
}

// TableName returns the weather table name.
func (StateWeather) TableName() string { return "state_weather_data" }

// DiseaseInfo is one classifier output class. Index equals the class index.
type DiseaseInfo struct {
	Index       int    `gorm:"primaryKey;autoIncrement:false;column:idx"`
	DiseaseName string `gorm:"type:varchar(255)"`
	Description string `gorm:"type:text"`
	Prevention  string `gorm:"type:text"`
	ImageURL    string `gorm:"type:varchar(1024)"`
}

// TableName returns the disease table name.
func (DiseaseInfo) TableName() string { return "disease_info" }

// SupplementInfo is the product suggested for the disease with the same index.
type SupplementInfo struct {
	Index       int    `gorm:"primaryKey;autoIncrement:false;column:idx"`
	DiseaseName string `gorm:"type:varchar(255)"`
	Name        string `gorm:"type:varchar(255)"`
	ImageURL    string `gorm:"type:varchar(1024)"`
	BuyLink     string `gorm:"type:varchar(1024)"`
}

// TableName returns the supplement table name.
func (SupplementInfo) TableName() string { return "supplement_info" }

// Tables is a full snapshot of the reference data.
type Tables struct {
	Soil        []StateSoil
	Weather     []StateWeather
	Diseases    []DiseaseInfo
	Supplements []SupplementInfo
}
