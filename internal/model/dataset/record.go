package dataset

// Record 收容所中一只动物的记录，所有字段均可缺省。
type Record struct {
	Name         *string         `json:"name,omitempty" yaml:"name,omitempty"`
	Species      *string         `json:"species,omitempty" yaml:"species,omitempty"`
	Breed        *string         `json:"breed,omitempty" yaml:"breed,omitempty"`
	Age          *float64        `json:"age,omitempty" yaml:"age,omitempty"` // 年
	Sex          *string         `json:"sex,omitempty" yaml:"sex,omitempty"`
	Vaccinated   *bool           `json:"vaccinated,omitempty" yaml:"vaccinated,omitempty"`
	Neutered     *bool           `json:"neutered,omitempty" yaml:"neutered,omitempty"`
	GoodWithKids *bool           `json:"good_with_kids,omitempty" yaml:"good_with_kids,omitempty"`
	Activity     []ActivityEntry `json:"activity,omitempty" yaml:"activity,omitempty"`
	Inquiries    *int            `json:"inquiries,omitempty" yaml:"inquiries,omitempty"` // 领养咨询次数
}

// ActivityEntry 某一天的活动时长
type ActivityEntry struct {
	Date    string  `json:"date" yaml:"date"`
	Minutes float64 `json:"minutes" yaml:"minutes"`
}

// TotalActivity sums the activity minutes. ok is false when the record has no activity series.
func (r Record) TotalActivity() (total float64, ok bool) {
	if len(r.Activity) == 0 {
		return 0, false
	}
	for _, entry := range r.Activity {
		total += entry.Minutes
	}
	return total, true
}
