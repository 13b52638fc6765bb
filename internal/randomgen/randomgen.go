// Package randomgen produces plausible contact data for tests and the benchmark client.
package randomgen

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	payload "gitlab.com/dirk.krummacker/contactbook/pkg/model"
)

var firstNames = []string{
	"Anna", "Ben", "Clara", "David", "Emma", "Felix", "Greta", "Hannes", "Ida", "Jonas",
	"Klara", "Lukas", "Mia", "Noah", "Olivia", "Paul", "Quirin", "Rosa", "Simon", "Tilda",
	"Ulrich", "Vera", "Willi", "Xaver", "Yasmin", "Zoe",
}

var lastNames = []string{
	"Müller", "Schmidt", "Schneider", "Fischer", "Weber", "Meyer", "Wagner", "Becker", "Schulz",
	"Hoffmann", "Schäfer", "Koch", "Bauer", "Richter", "Klein", "Wolf", "Schröder", "Neumann",
	"Schwarz", "Zimmermann", "Braun", "Krüger", "Hofmann", "Hartmann", "Lange", "Schmitt",
}

var domains = []string{"example.com", "example.org", "example.net", "mail.test"}

// PickFirstName returns a random first name.
func PickFirstName() string {
	return firstNames[rand.Intn(len(firstNames))]
}

// PickLastName returns a random last name.
func PickLastName() string {
	return lastNames[rand.Intn(len(lastNames))]
}

// Email builds an address from the names and a random number, lowercase and without umlauts.
func Email(firstName, lastName string) string {
	local := strings.ToLower(firstName + "." + lastName)
	local = umlauts.Replace(local)
	return fmt.Sprintf("%s%d@%s", local, rand.Intn(10000), domains[rand.Intn(len(domains))])
}

var umlauts = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

// Phone returns a random German mobile number.
func Phone() string {
	return fmt.Sprintf("+49 1%02d %07d", 50+rand.Intn(30), rand.Intn(10000000))
}

// Birthday returns a random date between 1940 and 2009.
func Birthday() time.Time {
	start := time.Date(1940, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start.AddDate(0, 0, rand.Intn(70*365))
}

// Contact returns a complete request body for a random person.
func Contact() payload.Contact {
	first, last := PickFirstName(), PickLastName()
	birthday := Birthday().Format(payload.DateLayout)
	return payload.Contact{
		FirstName: first,
		LastName:  last,
		Email:     Email(first, last),
		Phone:     Phone(),
		Birthday:  &birthday,
		Favorite:  rand.Intn(5) == 0,
	}
}
