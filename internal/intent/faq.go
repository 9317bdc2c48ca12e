package intent

import "strings"

var faqAnswers = map[string]string{
	"visa":      "Most visitors to Ethiopia need a visa. You can apply for an e-visa online at https://www.evisa.gov.et/ or get a visa on arrival at Bole International Airport in Addis Ababa. The standard tourist visa is valid for 30 days and costs approximately $50 USD.",
	"currency":  "The currency of Ethiopia is the Ethiopian Birr (ETB). ATMs are available in major cities, but it's advisable to carry cash when traveling to rural areas. Major hotels and some restaurants in Addis Ababa accept credit cards.",
	"language":  "Amharic is the official language of Ethiopia. English is widely spoken in tourist areas, hotels, and by guides. Learning a few basic Amharic phrases is appreciated by locals.",
	"safety":    "Ethiopia is generally safe for tourists, but like any destination, it's important to take standard precautions. Stay informed about current conditions, avoid isolated areas at night, and keep valuables secure.",
	"weather":   "Ethiopia's climate varies by altitude. The highlands are temperate with minimal seasonal temperature variation. The best time to visit is during the dry season (October to May). The lowlands can be significantly hotter.",
	"food":      "Ethiopian cuisine is unique and flavorful. Try injera (sourdough flatbread) with various wats (stews). Vegetarians will find plenty of options as many Ethiopians observe fasting periods with meat-free dishes.",
	"transport": "Within cities, taxis and bajaj (auto-rickshaws) are common. For intercity travel, domestic flights are recommended for longer distances. Buses connect major towns but can be crowded and slow.",
	"internet":  "Wi-Fi is available in most hotels and many cafes in Addis Ababa and other major cities. Mobile data is affordable - you can purchase a local SIM card with data packages at the airport or in mobile shops.",
}

// FAQTopic extracts the topic from an faq- quick-reply id.
func FAQTopic(replyID string) (string, bool) {
	if !strings.HasPrefix(replyID, PrefixFAQ) {
		return "", false
	}
	topic := strings.TrimPrefix(replyID, PrefixFAQ)
	return topic, topic != ""
}

// FAQAnswer returns the canned answer for topic. Unknown topics get a
// polite placeholder and ok=false.
func FAQAnswer(topic string) (answer string, ok bool) {
	if a, found := faqAnswers[strings.ToLower(topic)]; found {
		return a, true
	}
	return "I don't have specific information about " + topic + " yet, but I'm learning more every day!", false
}
