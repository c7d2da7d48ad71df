// internal/lexicon/lexicon.go
package lexicon

import "fmt"

// Key identifies one localized reply or button label.
type Key string

const (
	Welcome          Key = "welcome"
	WelcomeBack      Key = "welcome_back"
	Agreement        Key = "agreement"
	AgreementDone    Key = "agreement_done"
	NeedAgreement    Key = "need_agreement"
	NeedStart        Key = "need_start"
	Banned           Key = "banned"
	Help             Key = "help"
	ChooseModel      Key = "choose_model"
	GPT4oChoice      Key = "gpt4o_choice"
	Llama3Choice     Key = "llama3_choice"
	ScriptedChoice   Key = "scripted_choice"
	ModelSelected    Key = "model_selected"
	ModelRefused     Key = "model_refused"
	ModelNoAccess    Key = "model_no_access"
	ChatIntro        Key = "chat_intro"
	IdleHint         Key = "idle_hint"
	LowBalance       Key = "low_balance"
	BackendDown      Key = "backend_down"
	TransientError   Key = "transient_error"
	WrongState       Key = "wrong_state"
	Cancelled        Key = "cancelled"
	Settings         Key = "settings"
	LanguageChanged  Key = "language_changed"
	Balance          Key = "balance"
	TopUpPrompt      Key = "top_up_prompt"
	TopUpCredited    Key = "top_up_credited"
	AdminDenied      Key = "admin_denied"
	AdminMenu        Key = "admin_menu"
	AdminAskID       Key = "admin_ask_id"
	AdminEnterNumber Key = "admin_enter_number"
	AdminUserFound   Key = "admin_user_found"
	AdminNotFound    Key = "admin_not_found"
	AdminAccessMenu  Key = "admin_access_menu"
	AdminAccessDone  Key = "admin_access_done"
	AdminAskBalance  Key = "admin_ask_balance"
	AdminBalanceDone Key = "admin_balance_done"
	AdminStats       Key = "admin_stats"
	AdminTargetLost  Key = "admin_target_lost"
	AdminDeleted     Key = "admin_deleted"

	BtnYes        Key = "btn_yes"
	BtnNo         Key = "btn_no"
	BtnAgree      Key = "btn_agree"
	BtnCancel     Key = "btn_cancel"
	BtnGPT4o      Key = "btn_gpt4o"
	BtnLlama3     Key = "btn_llama3"
	BtnScripted   Key = "btn_scripted"
	BtnLanguage   Key = "btn_language"
	BtnTopUp      Key = "btn_top_up"
	BtnFindUser   Key = "btn_find_user"
	BtnStats      Key = "btn_stats"
	BtnEditAccess Key = "btn_edit_access"
	BtnEditTokens Key = "btn_edit_tokens"
)

var lexiconRU = map[Key]string{
	Welcome: "👋 Добро пожаловать, %s!\n\n" +
		"Я бот, который попробует ответить на твои вопросы, связанные с учёбой в МИСИС и не только!\n\n" +
		"— модель GPT4o поможет с учебными задачами\n" +
		"— модель Llama3 — открытая альтернатива\n" +
		"— «сценарный» режим ответит на типовые вопросы про университет\n\n" +
		"Команды: /chat — задать вопрос, /model — выбрать модель, /balance — баланс токенов.",
	WelcomeBack:   "👋 С возвращением, %s!\nТвой профиль уже существует.",
	Agreement:     "Перед началом работы нужно принять пользовательское соглашение.",
	AgreementDone: "Соглашение принято. Приятной работы!",
	NeedAgreement: "Сначала примите пользовательское соглашение через /start.",
	NeedStart:     "Пожалуйста, используйте /start для начала работы с ботом.",
	Banned:        "Доступ к боту ограничен.",
	Help: "Команды:\n/start — регистрация\n/chat — задать вопрос выбранной модели\n" +
		"/model — выбрать модель\n/settings — настройки\n/balance — баланс токенов",
	ChooseModel:    "Выберите модель для чата:",
	GPT4oChoice:    "Модель GPT4o. Это крутая и дорогая модель (%d токенов за запрос).\nВы уверены, что хотите её выбрать?",
	Llama3Choice:   "Модель Llama3. Мощная открытая модель (%d токенов за запрос).\nВы уверены, что хотите её выбрать?",
	ScriptedChoice: "Режим «сценарный». Поможет ответить на вопросы про МИСИС (%d токенов за запрос).\nВы уверены, что хотите его выбрать?",
	ModelSelected:  "Модель %s успешно выбрана.",
	ModelRefused:   "Выбор модели отменён.",
	ModelNoAccess:  "Эта модель вам недоступна. Обратитесь к администратору.",
	ChatIntro:      "Привет! Спроси меня любой вопрос — и я помогу тебе.",
	IdleHint:       "Чтобы задать вопрос, используйте /chat.",
	LowBalance:     "Недостаточно токенов: нужно %d, на балансе %d.\nПополните баланс через /balance и повторите вопрос.",
	BackendDown:    "Модель сейчас недоступна. Попробуйте отправить вопрос ещё раз.",
	TransientError: "Произошла временная ошибка. Попробуйте позже.",
	WrongState:     "Сейчас это действие недоступно.",
	Cancelled:      "Действие отменено.",
	Settings:       "Ваши настройки:\nЯзык: %s\nМодель: %s",
	LanguageChanged: "Язык изменён на %s.",
	Balance:        "Ваш баланс: %d токенов.",
	TopUpPrompt:    "Нажмите на кнопку ниже, чтобы купить пакет из %d токенов:",
	TopUpCredited:  "Оплата получена! Баланс пополнен на %d токенов.",
	AdminDenied:    "Эта команда доступна только администраторам.",
	AdminMenu:      "Меню администратора",
	AdminAskID:     "Введите ID пользователя:",
	AdminEnterNumber: "Введите число.",
	AdminUserFound: "Пользователь найден: %s (@%s)\n\nЯзык: %s\nМодель: %s\nБаланс токенов: %d\n\nЧто прикажете с ним сделать? 😏",
	AdminNotFound:  "Пользователь не найден.",
	AdminAccessMenu: "Изменить доступ к моделям для пользователя %s:",
	AdminAccessDone: "Настройки доступа успешно изменены.",
	AdminAskBalance: "Текущий баланс токенов пользователя %s: %d\n\nВведите новое значение:",
	AdminBalanceDone: "Баланс токенов успешно изменён на %d.",
	AdminStats:      "Всего пользователей: %d",
	AdminTargetLost: "Пользователь больше не существует. Введите другой ID:",
	AdminDeleted:    "Пользователь удалён.",

	BtnYes:        "✅ Да",
	BtnNo:         "❌ Нет",
	BtnAgree:      "✅ Принимаю",
	BtnCancel:     "Отмена",
	BtnGPT4o:      "🚀 GPT4o",
	BtnLlama3:     "🦙 Llama3",
	BtnScripted:   "👾 Сценарный",
	BtnLanguage:   "Язык: 🇷🇺 Русский",
	BtnTopUp:      "Пополнить",
	BtnFindUser:   "🔍 Найти пользователя",
	BtnStats:      "📊 Статистика",
	BtnEditAccess: "Доступ к моделям",
	BtnEditTokens: "Баланс токенов",
}

var lexiconEN = map[Key]string{
	Welcome: "👋 Welcome, %s!\n\n" +
		"I am a bot that will try to answer your questions related to studying at MISIS and beyond!\n\n" +
		"— the GPT4o model helps with academic tasks\n" +
		"— the Llama3 model is an open alternative\n" +
		"— the scripted mode answers common questions about the university\n\n" +
		"Commands: /chat — ask a question, /model — pick a model, /balance — token balance.",
	WelcomeBack:   "👋 Welcome back, %s!\nYour profile already exists.",
	Agreement:     "Please accept the user agreement before we begin.",
	AgreementDone: "Agreement accepted. Enjoy!",
	NeedAgreement: "Please accept the user agreement first via /start.",
	NeedStart:     "Please use /start to begin working with the bot.",
	Banned:        "Access to the bot is restricted.",
	Help: "Commands:\n/start — register\n/chat — ask the selected model\n" +
		"/model — pick a model\n/settings — settings\n/balance — token balance",
	ChooseModel:    "Choose a chat model:",
	GPT4oChoice:    "The GPT4o model. It's a cool and expensive model (%d tokens per request).\nAre you sure you want to select it?",
	Llama3Choice:   "The Llama3 model. A powerful open model (%d tokens per request).\nAre you sure you want to select it?",
	ScriptedChoice: "The scripted mode. It answers questions about MISIS (%d tokens per request).\nAre you sure you want to select it?",
	ModelSelected:  "The %s model has been selected.",
	ModelRefused:   "Model selection cancelled.",
	ModelNoAccess:  "This model is not available to you. Contact an administrator.",
	ChatIntro:      "Hi! Ask me any question and I will help you.",
	IdleHint:       "Use /chat to ask a question.",
	LowBalance:     "Not enough tokens: %d required, %d on balance.\nTop up via /balance and resend your question.",
	BackendDown:    "The model is unavailable right now. Please resend your question.",
	TransientError: "A temporary error occurred. Please try again later.",
	WrongState:     "You can't do that right now.",
	Cancelled:      "Action cancelled.",
	Settings:       "Your settings:\nLanguage: %s\nModel: %s",
	LanguageChanged: "Language changed to %s.",
	Balance:        "Your balance: %d tokens.",
	TopUpPrompt:    "Press the button below to buy a pack of %d tokens:",
	TopUpCredited:  "Payment received! Your balance was credited with %d tokens.",
	AdminDenied:    "This command is for administrators only.",
	AdminMenu:      "Admin menu",
	AdminAskID:     "Enter user ID:",
	AdminEnterNumber: "Enter a number.",
	AdminUserFound: "User found: %s (@%s)\n\nLanguage: %s\nModel: %s\nToken balance: %d\n\nWhat do you want to do with this user? 😏",
	AdminNotFound:  "User not found.",
	AdminAccessMenu: "Edit model access for user %s:",
	AdminAccessDone: "Access settings have been updated.",
	AdminAskBalance: "Current token balance for user %s: %d\n\nEnter a new value:",
	AdminBalanceDone: "Token balance has been changed to %d.",
	AdminStats:      "Total users: %d",
	AdminTargetLost: "The user no longer exists. Enter another ID:",
	AdminDeleted:    "User deleted.",

	BtnYes:        "✅ Yes",
	BtnNo:         "❌ No",
	BtnAgree:      "✅ Accept",
	BtnCancel:     "Cancel",
	BtnGPT4o:      "🚀 GPT4o",
	BtnLlama3:     "🦙 Llama3",
	BtnScripted:   "👾 Scripted",
	BtnLanguage:   "Language: 🇬🇧 English",
	BtnTopUp:      "Top up",
	BtnFindUser:   "🔍 Find user",
	BtnStats:      "📊 Stats",
	BtnEditAccess: "Model access",
	BtnEditTokens: "Token balance",
}

// Text returns the string for key in the given language, falling back
// to Russian (the default profile language) for unknown languages or
// missing keys.
func Text(lang string, key Key) string {
	if lang == "en" {
		if s, ok := lexiconEN[key]; ok {
			return s
		}
	}
	if s, ok := lexiconRU[key]; ok {
		return s
	}
	return string(key)
}

// Textf is Text with fmt.Sprintf substitution.
func Textf(lang string, key Key, args ...interface{}) string {
	return fmt.Sprintf(Text(lang, key), args...)
}
