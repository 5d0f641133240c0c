package digest

// Labels 摘要中使用的本地化文案，格式串按 fmt 语义展开。
type Labels struct {
	Heading      string // %d 动物数量
	RecordTitle  string // %d 序号（从 1 开始）
	Unnamed      string // %d 序号，名字缺失时的指代
	Unknown      string
	Yes          string
	No           string
	Name         string
	Species      string
	Breed        string
	Age          string
	AgeValue     string // %s 年龄数值
	Sex          string
	Vaccinated   string
	Neutered     string
	GoodWithKids string
	Activity     string
	ActivityVal  string // %s 总分钟数, %d 记录天数
	Inquiries    string
	SummaryTitle string
	TopActivity  string // %s 名字, %s 分钟数
	TopInquiries string // %s 名字, %d 次数
	NoActivity   string
	NoInquiries  string
}

func EnglishLabels() Labels {
	return Labels{
		Heading:      "Shelter data with %d animals.",
		RecordTitle:  "Animal %d",
		Unnamed:      "animal number %d",
		Unknown:      "unknown",
		Yes:          "yes",
		No:           "no",
		Name:         "Name",
		Species:      "Species",
		Breed:        "Breed",
		Age:          "Age",
		AgeValue:     "%s years",
		Sex:          "Sex",
		Vaccinated:   "Vaccinated",
		Neutered:     "Neutered",
		GoodWithKids: "Good with kids",
		Activity:     "Activity",
		ActivityVal:  "%s minutes over %d days",
		Inquiries:    "Adoption inquiries",
		SummaryTitle: "Highlights",
		TopActivity:  "%s has the most total activity, %s minutes.",
		TopInquiries: "%s has received the most adoption inquiries, %d in total.",
		NoActivity:   "No activity data is available for any animal.",
		NoInquiries:  "No adoption inquiry data is available for any animal.",
	}
}

func ChineseLabels() Labels {
	return Labels{
		Heading:      "收容所数据，共 %d 只动物。",
		RecordTitle:  "第 %d 只动物",
		Unnamed:      "第 %d 只动物",
		Unknown:      "未知",
		Yes:          "是",
		No:           "否",
		Name:         "名字",
		Species:      "物种",
		Breed:        "品种",
		Age:          "年龄",
		AgeValue:     "%s 岁",
		Sex:          "性别",
		Vaccinated:   "已接种疫苗",
		Neutered:     "已绝育",
		GoodWithKids: "适合有孩子的家庭",
		Activity:     "活动量",
		ActivityVal:  "%d 天共 %s 分钟",
		Inquiries:    "领养咨询",
		SummaryTitle: "要点",
		TopActivity:  "%s 的总活动量最多，共 %s 分钟。",
		TopInquiries: "%s 收到的领养咨询最多，共 %d 次。",
		NoActivity:   "所有动物都没有活动量数据。",
		NoInquiries:  "所有动物都没有领养咨询数据。",
	}
}
