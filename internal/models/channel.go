package models

// AllChannels is the sentinel that selects every channel.
const AllChannels = "all"

// Channel is a department-scoped sub-feed.
type Channel struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"fullName"`
	Description string `json:"description"`
}

// Channels is the fixed channel catalog.
var Channels = []Channel{
	{ID: "cse", Name: "CSE", FullName: "Department of Computer Science and Engineering (CSE)", Description: "Core computing and engineering."},
	{ID: "ict", Name: "ICT", FullName: "Department of Information and Communication Technology (ICT)", Description: "Info systems and networking."},
	{ID: "es", Name: "ES", FullName: "Department of Environmental Science (ES)", Description: "Eco-systems and sustainability."},
	{ID: "ba-gen", Name: "BA-Gen", FullName: "Department of Business Administration – General", Description: "General business principles."},
	{ID: "ais", Name: "AIS", FullName: "Department of Business Administration in Accounting & Information Systems (AIS)", Description: "Financial data and audit."},
	{ID: "management", Name: "Management", FullName: "Department of Business Administration in Management Studies", Description: "Org behavior and leadership."},
	{ID: "finance", Name: "Finance", FullName: "Department of Business Administration in Finance & Banking", Description: "Financial markets and banking."},
	{ID: "marketing", Name: "Marketing", FullName: "Department of Business Administration in Marketing", Description: "Consumer strategy and brands."},
	{ID: "economics", Name: "Economics", FullName: "Department of Economics", Description: "Global and local fiscal studies."},
	{ID: "dhsm", Name: "DHSM", FullName: "Department of Disaster & Human Security Management (DHSM)", Description: "Crisis and security response."},
	{ID: "english", Name: "English", FullName: "Department of English", Description: "Linguistics and literature."},
	{ID: "pub-ad", Name: "Public Admin", FullName: "Department of Public Administration", Description: "Governance and civil policy."},
	{ID: "sociology", Name: "Sociology", FullName: "Department of Sociology", Description: "Societal structures and behavior."},
	{ID: "ds", Name: "DS", FullName: "Department of Development Studies (DS)", Description: "Sustainable growth studies."},
	{ID: "ir", Name: "IR", FullName: "Department of International Relations (IR)", Description: "Global politics and diplomacy."},
	{ID: "law", Name: "Law", FullName: "Department of Law", Description: "Legal theory and practice."},
	{ID: "mcj", Name: "MCJ", FullName: "Department of Mass Communication & Journalism (MCJ)", Description: "Media ethics and news."},
	{ID: "pchr", Name: "PCHR", FullName: "Department of Peace, Conflict & Human Rights (PCHR)", Description: "Advocacy and resolution."},
	{ID: "campus-life", Name: "CampusLife", FullName: "Campus Life & Events", Description: "Everything happening around campus."},
	{ID: "exams", Name: "Exams", FullName: "Exam Updates & Discussion", Description: "Dates, routine, and prep talk."},
}

// IsKnownChannel reports whether id names a real channel (the "all" sentinel is not one).
func IsKnownChannel(id string) bool {
	for _, c := range Channels {
		if c.ID == id {
			return true
		}
	}
	return false
}
