package notify

import "github.com/tapcard/cardshop/internal/orders"

// message is the copy for one (event, locale) pair. Subject, Heading and
// Paragraphs are text/template snippets executed against View.
type message struct {
	Subject    string
	Heading    string
	Paragraphs []string
	Summary    bool
}

type labels struct {
	Greeting    string
	OrderNumber string
	Status      string
	Quantity    string
	Shipping    string
	Total       string
	Maintenance string
	Tracking    string
	Customer    string
	Phone       string
	Email       string
	Address     string
	Signature   string
}

var localeLabels = map[string]labels{
	"fr": {
		Greeting:    "Bonjour {{.CustomerName}},",
		OrderNumber: "Numéro de commande",
		Status:      "Statut",
		Quantity:    "Quantité",
		Shipping:    "Livraison",
		Total:       "Total",
		Maintenance: "Abonnement",
		Tracking:    "Numéro de suivi",
		Customer:    "Client",
		Phone:       "Téléphone",
		Email:       "E-mail",
		Address:     "Adresse",
		Signature:   "L'équipe TapCard",
	},
	"ar": {
		Greeting:    "مرحباً {{.CustomerName}}،",
		OrderNumber: "رقم الطلب",
		Status:      "الحالة",
		Quantity:    "الكمية",
		Shipping:    "التوصيل",
		Total:       "المجموع",
		Maintenance: "الاشتراك",
		Tracking:    "رقم التتبع",
		Customer:    "الزبون",
		Phone:       "الهاتف",
		Email:       "البريد الإلكتروني",
		Address:     "العنوان",
		Signature:   "فريق TapCard",
	},
	"en": {
		Greeting:    "Hello {{.CustomerName}},",
		OrderNumber: "Order number",
		Status:      "Status",
		Quantity:    "Quantity",
		Shipping:    "Shipping",
		Total:       "Total",
		Maintenance: "Subscription",
		Tracking:    "Tracking number",
		Customer:    "Customer",
		Phone:       "Phone",
		Email:       "Email",
		Address:     "Address",
		Signature:   "The TapCard team",
	},
}

var catalog = map[orders.NotificationEvent]map[string]message{
	orders.NotifyOrderConfirmation: {
		"fr": {
			Subject:    "Confirmation de votre commande {{.OrderNumber}}",
			Heading:    "Merci pour votre commande !",
			Paragraphs: []string{"Nous avons bien reçu votre commande {{.OrderNumber}}. Nous vous contacterons pour confirmer le paiement."},
			Summary:    true,
		},
		"ar": {
			Subject:    "تأكيد طلبك {{.OrderNumber}}",
			Heading:    "شكراً على طلبك!",
			Paragraphs: []string{"لقد توصلنا بطلبك {{.OrderNumber}}. سنتصل بك لتأكيد الدفع."},
			Summary:    true,
		},
		"en": {
			Subject:    "Your order {{.OrderNumber}} is confirmed",
			Heading:    "Thank you for your order!",
			Paragraphs: []string{"We received your order {{.OrderNumber}}. We will contact you to confirm payment."},
			Summary:    true,
		},
	},
	orders.NotifyWelcome: {
		"fr": {
			Subject:    "Bienvenue chez TapCard",
			Heading:    "Bienvenue !",
			Paragraphs: []string{"Votre carte de visite NFC sera bientôt prête. Une seule touche suffira pour partager vos coordonnées."},
		},
		"ar": {
			Subject:    "مرحباً بك في TapCard",
			Heading:    "أهلاً وسهلاً!",
			Paragraphs: []string{"بطاقة الأعمال الذكية الخاصة بك ستكون جاهزة قريباً. لمسة واحدة تكفي لمشاركة معلوماتك."},
		},
		"en": {
			Subject:    "Welcome to TapCard",
			Heading:    "Welcome!",
			Paragraphs: []string{"Your NFC business card will be ready soon. One tap is all it takes to share your details."},
		},
	},
	orders.NotifyPaymentConfirmed: {
		"fr": {
			Subject:    "Paiement reçu pour la commande {{.OrderNumber}}",
			Heading:    "Paiement confirmé",
			Paragraphs: []string{"Nous avons bien reçu votre paiement de {{.Total}}. Votre carte passe maintenant en fabrication."},
		},
		"ar": {
			Subject:    "تم استلام الدفع للطلب {{.OrderNumber}}",
			Heading:    "تم تأكيد الدفع",
			Paragraphs: []string{"توصلنا بدفعتك بقيمة {{.Total}}. بطاقتك ستدخل مرحلة التصنيع."},
		},
		"en": {
			Subject:    "Payment received for order {{.OrderNumber}}",
			Heading:    "Payment confirmed",
			Paragraphs: []string{"We received your payment of {{.Total}}. Your card is moving to production."},
		},
	},
	orders.NotifyInProduction: {
		"fr": {
			Subject:    "Votre commande {{.OrderNumber}} est en fabrication",
			Heading:    "En fabrication",
			Paragraphs: []string{"Nos équipes impriment et programment votre carte."},
		},
		"ar": {
			Subject:    "طلبك {{.OrderNumber}} قيد التصنيع",
			Heading:    "قيد التصنيع",
			Paragraphs: []string{"فريقنا يقوم بطباعة وبرمجة بطاقتك."},
		},
		"en": {
			Subject:    "Your order {{.OrderNumber}} is in production",
			Heading:    "In production",
			Paragraphs: []string{"Our team is printing and programming your card."},
		},
	},
	orders.NotifyShipped: {
		"fr": {
			Subject:    "Votre commande {{.OrderNumber}} a été expédiée",
			Heading:    "Commande expédiée",
			Paragraphs: []string{"Votre carte est en route.{{if .TrackingNumber}} Numéro de suivi : {{.TrackingNumber}}.{{end}}"},
		},
		"ar": {
			Subject:    "تم شحن طلبك {{.OrderNumber}}",
			Heading:    "تم الشحن",
			Paragraphs: []string{"بطاقتك في الطريق إليك.{{if .TrackingNumber}} رقم التتبع: {{.TrackingNumber}}.{{end}}"},
		},
		"en": {
			Subject:    "Your order {{.OrderNumber}} has shipped",
			Heading:    "Order shipped",
			Paragraphs: []string{"Your card is on its way.{{if .TrackingNumber}} Tracking number: {{.TrackingNumber}}.{{end}}"},
		},
	},
	orders.NotifyDelivered: {
		"fr": {
			Subject:    "Votre commande {{.OrderNumber}} a été livrée",
			Heading:    "Commande livrée",
			Paragraphs: []string{"Votre carte vous a été remise. Approchez-la d'un téléphone pour l'essayer !"},
		},
		"ar": {
			Subject:    "تم تسليم طلبك {{.OrderNumber}}",
			Heading:    "تم التسليم",
			Paragraphs: []string{"تم تسليم بطاقتك. قربها من أي هاتف لتجربتها!"},
		},
		"en": {
			Subject:    "Your order {{.OrderNumber}} was delivered",
			Heading:    "Order delivered",
			Paragraphs: []string{"Your card has been delivered. Tap it on any phone to try it out!"},
		},
	},
	orders.NotifyInvoice: {
		"fr": {
			Subject:    "Facture de la commande {{.OrderNumber}}",
			Heading:    "Facture",
			Paragraphs: []string{"Veuillez trouver ci-dessous le récapitulatif de votre commande."},
			Summary:    true,
		},
		"ar": {
			Subject:    "فاتورة الطلب {{.OrderNumber}}",
			Heading:    "الفاتورة",
			Paragraphs: []string{"تجد أسفله ملخص طلبك."},
			Summary:    true,
		},
		"en": {
			Subject:    "Invoice for order {{.OrderNumber}}",
			Heading:    "Invoice",
			Paragraphs: []string{"Please find your order summary below."},
			Summary:    true,
		},
	},
	orders.NotifyAdmin: {
		"fr": {
			Subject:    "Commande {{.OrderNumber}} ({{.Status}})",
			Heading:    "Notification interne",
			Paragraphs: []string{"La commande {{.OrderNumber}} de {{.CustomerName}} est au statut {{.Status}}."},
			Summary:    true,
		},
		"ar": {
			Subject:    "الطلب {{.OrderNumber}} ({{.Status}})",
			Heading:    "إشعار داخلي",
			Paragraphs: []string{"الطلب {{.OrderNumber}} الخاص بـ {{.CustomerName}} في حالة {{.Status}}."},
			Summary:    true,
		},
		"en": {
			Subject:    "Order {{.OrderNumber}} ({{.Status}})",
			Heading:    "Internal notification",
			Paragraphs: []string{"Order {{.OrderNumber}} from {{.CustomerName}} is {{.Status}}."},
			Summary:    true,
		},
	},
}
