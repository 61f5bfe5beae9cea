package memory

import "time"

// DemoDataset is the built-in seed used when no data file is present.
func DemoDataset() Dataset {
	at := func(month time.Month, day, hour int) time.Time {
		return time.Date(2024, month, day, hour, 0, 0, 0, time.UTC)
	}
	return Dataset{
		Transactions: []jsonTransaction{
			{Name: "Emma Richardson", Category: "General", Date: at(8, 19, 14), Amount: 75.50},
			{Name: "Savory Bites Bistro", Category: "Dining Out", Date: at(8, 19, 20), Amount: -55.50},
			{Name: "Daniel Carter", Category: "General", Date: at(8, 18, 9), Amount: -42.30},
			{Name: "Sun Park", Category: "General", Date: at(8, 17, 16), Amount: 120.00},
			{Name: "Urban Services Hub", Category: "General", Date: at(8, 17, 21), Amount: -65.00},
			{Name: "Liam Hughes", Category: "Groceries", Date: at(8, 15, 18), Amount: 65.75},
			{Name: "Lily Ramirez", Category: "General", Date: at(8, 14, 13), Amount: 50.00},
			{Name: "Ethan Clark", Category: "Dining Out", Date: at(8, 13, 20), Amount: -32.50},
			{Name: "James Thompson", Category: "Entertainment", Date: at(8, 11, 15), Amount: -5.00},
			{Name: "Pixel Playground", Category: "Entertainment", Date: at(8, 11, 18), Amount: -10.00, Recurring: true},
			{Name: "Ella Phillips", Category: "Dining Out", Date: at(8, 10, 19), Amount: -45.00},
			{Name: "Sofia Peterson", Category: "Transportation", Date: at(8, 8, 8), Amount: -15.00},
			{Name: "Mason Martinez", Category: "Lifestyle", Date: at(8, 7, 17), Amount: -35.25},
			{Name: "Green Plate Eatery", Category: "Groceries", Date: at(8, 6, 8), Amount: -78.50},
			{Name: "Sebastian Cook", Category: "Transportation", Date: at(8, 6, 10), Amount: -22.50},
			{Name: "William Harris", Category: "Personal Care", Date: at(8, 5, 14), Amount: -10.00},
			{Name: "Elevate Education", Category: "Education", Date: at(8, 4, 11), Amount: -50.00, Recurring: true},
			{Name: "Serenity Spa & Wellness", Category: "Personal Care", Date: at(8, 3, 14), Amount: -30.00, Recurring: true},
			{Name: "Spark Electric Solutions", Category: "Bills", Date: at(8, 2, 9), Amount: -100.00, Recurring: true},
			{Name: "Rina Sato", Category: "Bills", Date: at(8, 2, 13), Amount: -50.00},
			{Name: "Swift Ride Share", Category: "Transportation", Date: at(8, 1, 18), Amount: -18.75},
			{Name: "Aqua Flow Utilities", Category: "Bills", Date: at(7, 30, 13), Amount: -100.00, Recurring: true},
			{Name: "EcoFuel Energy", Category: "Bills", Date: at(7, 29, 11), Amount: -35.00, Recurring: true},
			{Name: "Yuna Kim", Category: "Dining Out", Date: at(7, 29, 13), Amount: -28.50},
			{Name: "Flavor Fiesta", Category: "Dining Out", Date: at(7, 27, 20), Amount: -42.75},
			{Name: "Harper Edwards", Category: "Shopping", Date: at(7, 26, 9), Amount: -89.99},
			{Name: "Buzz Marketing Group", Category: "General", Date: at(7, 26, 14), Amount: 3358.00},
			{Name: "Nimbus Data Storage", Category: "Bills", Date: at(7, 21, 10), Amount: -9.99, Recurring: true},
			{Name: "ByteWise", Category: "Lifestyle", Date: at(7, 23, 16), Amount: -49.99, Recurring: true},
			{Name: "Pixel Playground", Category: "Entertainment", Date: at(7, 11, 18), Amount: -10.00, Recurring: true},
			{Name: "Spark Electric Solutions", Category: "Bills", Date: at(7, 2, 9), Amount: -100.00, Recurring: true},
		},
		Pots: []jsonPot{
			{Name: "Savings", Target: 2000, Total: 159, Theme: "#277C78"},
			{Name: "Concert Ticket", Target: 150, Total: 110, Theme: "#626070"},
			{Name: "Gift", Target: 150, Total: 110, Theme: "#82C9D7"},
			{Name: "New Laptop", Target: 1000, Total: 10, Theme: "#F2CDAC"},
			{Name: "Holiday", Target: 1440, Total: 531, Theme: "#826CB0"},
		},
		Budgets: []jsonBudget{
			{Category: "Entertainment", Maximum: 50, Theme: "#277C78"},
			{Category: "Bills", Maximum: 750, Theme: "#82C9D7"},
			{Category: "Dining Out", Maximum: 75, Theme: "#F2CDAC"},
			{Category: "Personal Care", Maximum: 100, Theme: "#626070"},
		},
	}
}
