package taxonomy

func field(key, name, description string) Field {
	return Field{Key: key, Name: name, Description: description}
}

var definition = []Section{
	{
		Key:  "individual",
		Name: "Individual",
		Subsections: []Subsection{
			{Key: "background", Name: "Background", Fields: []Field{
				field("role", "Role", "Current title and what the person is responsible for"),
				field("career_history", "Career History", "Previous roles, companies and notable transitions"),
				field("education", "Education", "Degrees, programs and formative training"),
				field("location", "Location", "Where the person lives or primarily works"),
			}},
			{Key: "expertise", Name: "Expertise", Fields: []Field{
				field("skills", "Skills", "Hands-on capabilities and tools"),
				field("domain_knowledge", "Domain Knowledge", "Industries or problem spaces the person knows deeply"),
				field("credentials", "Credentials", "Certifications, publications, awards"),
			}},
			{Key: "motivations", Name: "Motivations", Fields: []Field{
				field("goals", "Goals", "What the person is trying to achieve personally and professionally"),
				field("values", "Values", "Principles that guide their decisions"),
				field("working_style", "Working Style", "How they prefer to work, communicate and decide"),
			}},
		},
	},
	{
		Key:  "organization",
		Name: "Organization",
		Subsections: []Subsection{
			{Key: "fundamentals", Name: "Fundamentals", Fields: []Field{
				field("company_name", "Company Name", "Legal or trading name"),
				field("industry", "Industry", "Sector and sub-sector the company operates in"),
				field("stage", "Stage", "Funding or maturity stage (idea, pre-seed, seed, series A, growth)"),
				field("team_size", "Team Size", "Headcount and team composition"),
				field("founded", "Founded", "When and how the company started"),
				field("headquarters", "Headquarters", "Primary location and remote footprint"),
			}},
			{Key: "offering", Name: "Offering", Fields: []Field{
				field("products", "Products", "Products and services sold"),
				field("target_customers", "Target Customers", "Who buys and who uses the offering"),
				field("pricing_model", "Pricing Model", "How the company charges"),
				field("differentiators", "Differentiators", "Why customers choose this over alternatives"),
			}},
			{Key: "traction", Name: "Traction", Fields: []Field{
				field("revenue", "Revenue", "Revenue figures, run rate and growth"),
				field("funding", "Funding", "Capital raised, investors and runway"),
				field("key_metrics", "Key Metrics", "Usage, retention and other operating metrics"),
				field("milestones", "Milestones", "Launches, wins and other notable events"),
			}},
		},
	},
	{
		Key:  "market",
		Name: "Market",
		Subsections: []Subsection{
			{Key: "landscape", Name: "Landscape", Fields: []Field{
				field("competitors", "Competitors", "Direct and indirect competitors"),
				field("market_size", "Market Size", "TAM, SAM, SOM or other sizing"),
				field("trends", "Trends", "Shifts affecting the market"),
			}},
			{Key: "positioning", Name: "Positioning", Fields: []Field{
				field("value_proposition", "Value Proposition", "The core promise to customers"),
				field("ideal_customer_profile", "Ideal Customer Profile", "Firmographics and traits of the best-fit customer"),
				field("go_to_market", "Go-To-Market", "Channels and motions used to acquire customers"),
			}},
		},
	},
	{
		Key:  "strategy",
		Name: "Strategy",
		Subsections: []Subsection{
			{Key: "priorities", Name: "Priorities", Fields: []Field{
				field("current_focus", "Current Focus", "What the team is working on now"),
				field("challenges", "Challenges", "Obstacles and risks"),
				field("roadmap", "Roadmap", "Planned initiatives over the next quarters"),
			}},
			{Key: "needs", Name: "Needs", Fields: []Field{
				field("hiring_needs", "Hiring Needs", "Roles the company wants to fill"),
				field("partnerships", "Partnerships", "Partners sought or in place"),
				field("resources_needed", "Resources Needed", "Capital, tools, advice or introductions needed"),
			}},
		},
	},
}
